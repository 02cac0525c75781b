package common

const ErrCodeNotFound = "G_NOT_FOUND"
const ErrCodeBadRequest = "G_BAD_REQUEST"
const ErrCodeMethodNotAllowed = "G_METHOD_NOT_ALLOWED"
const ErrCodeForbidden = "G_FORBIDDEN"
const ErrCodeMissingToken = "G_MISSING_TOKEN"
const ErrCodeUnknownToken = "G_UNKNOWN_TOKEN"
const ErrCodeConflict = "G_CONFLICT"
const ErrCodeRetryExhausted = "G_RETRY_EXHAUSTED"
const ErrCodeUnknown = "G_UNKNOWN"
