package common

import "errors"

var (
	ErrRequestParamEmpty               = errors.New("request param is empty")
	ErrRequestParamInvalid             = errors.New("request param is invalid")
	ErrContentTypeNotMultipartFormData = errors.New("content-type is not multipart/form-data")
	ErrAdminTokenMismatch              = errors.New("admin token mismatch")
)
