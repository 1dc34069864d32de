package logic

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadySubmitted   = errors.New("an application for this cycle has already been submitted")
	ErrDraftClosed        = errors.New("this grant cycle is closed")
	ErrDraftExists        = errors.New("a draft for this cycle already exists")
	ErrHasPendingStep     = errors.New("contact already has an incomplete step")
	ErrDuplicateAccount   = errors.New("that email is already registered")
	ErrInvalidCredentials = errors.New("your login and password didn't match")
	ErrInactiveAccount    = errors.New("your account is not active, contact an administrator")
	ErrAlreadyMember      = errors.New("you are already registered with that giving project")
	ErrFileType           = errors.New("file type is not allowed")
	ErrUnknownFileField   = errors.New("unknown file field")
)

// notFound 把 gorm 的未找到错误转换为 ErrNotFound
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
