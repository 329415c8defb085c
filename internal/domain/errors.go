package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation 输入校验失败的根错误，可通过 errors.Is 判断
	ErrValidation = errors.New("validation failed")
	// ErrEmailNotFound 跟踪邮件不存在
	ErrEmailNotFound = errors.New("email not found")
	// ErrInvalidStatus 状态值不合法
	ErrInvalidStatus = errors.New("invalid email status")
)

// ValidationError 描述单个字段的校验失败。
type ValidationError struct {
	Field  string
	Reason string
	Err    error // 可选的具体原因
}

func newValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// Is 使 errors.Is(err, ErrValidation) 成立。
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
