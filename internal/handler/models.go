package handler

// 通用响应结构
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// FormView 表单页面数据
type FormView struct {
	Name   string                 `json:"form"`
	Values map[string]interface{} `json:"values"`
	Errors map[string][]string    `json:"errors"`
	Extra  map[string]interface{} `json:"extra,omitempty"`
}
