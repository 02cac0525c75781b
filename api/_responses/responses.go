package _responses

import (
	"io"

	"github.com/pixelvault/gallery-repo/common"
)

type EmptyResponse struct{}

// AcceptedResponse wraps a payload that should be served with a 202 - the
// request was understood but the artifact is still being generated.
type AcceptedResponse struct {
	Payload interface{}
}

// DownloadResponse streams a zip back through the service.
type DownloadResponse struct {
	ContentType string
	Filename    string
	SizeBytes   int64
	Data        io.ReadCloser
}

type ErrorResponse struct {
	Code    string `json:"errcode"`
	Message string `json:"error"`
}

func InternalServerError(message string) *ErrorResponse {
	return &ErrorResponse{common.ErrCodeUnknown, message}
}

func MethodNotAllowed() *ErrorResponse {
	return &ErrorResponse{common.ErrCodeMethodNotAllowed, "Method Not Allowed"}
}

func NotFoundError() *ErrorResponse {
	return &ErrorResponse{common.ErrCodeNotFound, "Not found"}
}

func BadRequest(message string) *ErrorResponse {
	return &ErrorResponse{common.ErrCodeBadRequest, message}
}

func AuthFailed() *ErrorResponse {
	return &ErrorResponse{common.ErrCodeUnknownToken, "Authentication Failed"}
}

func MissingToken() *ErrorResponse {
	return &ErrorResponse{common.ErrCodeMissingToken, "Authentication token required"}
}

func Forbidden(message string) *ErrorResponse {
	return &ErrorResponse{common.ErrCodeForbidden, message}
}

func Conflict(message string) *ErrorResponse {
	return &ErrorResponse{common.ErrCodeConflict, message}
}

func RetryExhausted() *ErrorResponse {
	return &ErrorResponse{common.ErrCodeRetryExhausted, "No retries remaining - reset the build errors first"}
}
