package sandbox

import (
	"errors"
	"net/http"
)

// Error 业务错误，Code 写入响应信封
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func badRequest(msg string) error {
	return &Error{Code: http.StatusBadRequest, Message: msg}
}

func notFound(msg string) error {
	return &Error{Code: http.StatusNotFound, Message: msg}
}

// codeOf 提取业务错误码，非业务错误返回 500
func codeOf(err error) (int, string) {
	var shopErr *Error
	if errors.As(err, &shopErr) {
		return shopErr.Code, shopErr.Message
	}
	return http.StatusInternalServerError, "服务器内部错误"
}
