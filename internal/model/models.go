package model

// All 全部需要迁移的模型
func All() []interface{} {
	return []interface{}{
		&UserModel{},
		&SessionModel{},
		&MemberModel{},
		&GivingProjectModel{},
		&SurveyModel{},
		&GPSurveyModel{},
		&SurveyResponseModel{},
		&MembershipModel{},
		&NewsItemModel{},
		&DonorModel{},
		&StepModel{},
		&OrganizationModel{},
		&GrantCycleModel{},
		&DraftGrantApplicationModel{},
		&GrantApplicationModel{},
		&ProjectAppModel{},
		&GrantAwardModel{},
		&EmailMessageModel{},
	}
}
