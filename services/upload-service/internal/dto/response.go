package dto

import (
	"errors"
	"fmt"
	"strings"

	res "terminal-terrace/response"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

func SuccessResponse(c *gin.Context, data any) {
	c.JSON(200, res.SuccessResponse(data))
}

func ErrorResponse(c *gin.Context, err *res.BusinessError) {
	c.JSON(200, res.ErrorResponse(err.Code, err.Msg))
}

// StatusErrorResponse 按业务码返回对应的 HTTP 状态码并中止后续处理
// 上传接口使用：plupload 客户端只有在非 2xx 时才会重试分块
func StatusErrorResponse(c *gin.Context, err *res.BusinessError) {
	c.AbortWithStatusJSON(err.Code.HTTPStatus(), res.ErrorResponse(err.Code, err.Msg))
}

// ValidationErrorResponse 处理验证错误，返回友好的字段名
func ValidationErrorResponse(c *gin.Context, err error) {
	StatusErrorResponse(c, ValidationError(err, res.ParseError))
}

// ValidationError 把 validator 的错误转换成业务错误
func ValidationError(err error, code res.ResponseCode) *res.BusinessError {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		firstErr := validationErrs[0]
		field := toSnakeCase(firstErr.Field())

		var message string
		switch firstErr.Tag() {
		case "required":
			message = fmt.Sprintf("字段 '%s' 是必填项", field)
		case "max":
			message = fmt.Sprintf("字段 '%s' 不能超过 %s", field, firstErr.Param())
		case "min":
			message = fmt.Sprintf("字段 '%s' 不能小于 %s", field, firstErr.Param())
		case "oneof":
			message = fmt.Sprintf("字段 '%s' 必须是以下值之一: %s", field, firstErr.Param())
		default:
			message = fmt.Sprintf("字段 '%s' 验证失败: %s", field, firstErr.Tag())
		}

		return res.NewBusinessError(
			res.WithErrorCode(code),
			res.WithErrorMessage(message),
			res.WithError(err),
		)
	}

	// 如果不是 validation 错误，返回原始错误消息
	return res.NewBusinessError(
		res.WithErrorCode(code),
		res.WithErrorMessage("参数错误: "+err.Error()),
		res.WithError(err),
	)
}

// toSnakeCase 将PascalCase转换为snake_case
func toSnakeCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result.WriteRune('_')
		}
		result.WriteRune(r)
	}
	return strings.ToLower(result.String())
}
