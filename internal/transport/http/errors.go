package httptransport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"momentummail/backend/internal/domain"
)

// 通用错误消息
const (
	MsgNotFound         = "Not Found"
	MsgEmailNotFound    = "Email not found"
	MsgInternalError    = "Internal Server Error"
	MsgInvalidJSON      = "Malformed JSON body"
	MsgRequestBodyEmpty = "Request body must not be empty"
	MsgRequestTooLarge  = "Request body too large"
)

// 校验规则对应的提示
var ruleMessages = map[string]string{
	"required": "is required",
	"email":    "must be a valid email address",
}

// respondError 将业务错误映射为 HTTP 状态码
func respondError(c *gin.Context, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		BadRequest(c, err.Error())
	case errors.Is(err, domain.ErrEmailNotFound):
		NotFound(c, MsgEmailNotFound)
	default:
		log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		InternalError(c)
	}
}

// respondBindError 处理请求体解析与校验错误
func respondBindError(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var maxBytesErr *http.MaxBytesError

	switch {
	case errors.As(err, &validationErrs):
		BadRequest(c, describeValidation(validationErrs))
	case errors.Is(err, io.EOF):
		BadRequest(c, MsgRequestBodyEmpty)
	case errors.As(err, &maxBytesErr):
		Fail(c, http.StatusRequestEntityTooLarge, MsgRequestTooLarge)
	case errors.As(err, &typeErr):
		BadRequest(c, fmt.Sprintf("%s has an invalid type", typeErr.Field))
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		BadRequest(c, MsgInvalidJSON)
	case errors.Is(err, domain.ErrValidation):
		BadRequest(c, err.Error())
	default:
		BadRequest(c, MsgInvalidJSON)
	}
}

func describeValidation(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		msg, ok := ruleMessages[fe.Tag()]
		if !ok {
			msg = fmt.Sprintf("failed on the %q rule", fe.Tag())
		}
		parts = append(parts, fmt.Sprintf("%s %s", fe.Field(), msg))
	}
	return strings.Join(parts, "; ")
}
