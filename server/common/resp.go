package common

const (
	CodeSuccess      = 0
	CodeUnknownError = 1
	CodeBadParam     = 2
	CodeNotFound     = 3
)

// Resp 所有接口统一的响应格式。
type Resp struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data"`
}

func MakeSuccessResp(data any) *Resp {
	return &Resp{
		Code: CodeSuccess,
		Msg:  "success",
		Data: data,
	}
}

func MakeUnknownErrorResp() *Resp {
	return &Resp{
		Code: CodeUnknownError,
		Msg:  "unknown error",
	}
}

func MakeBadParamResp(msg string) *Resp {
	return &Resp{
		Code: CodeBadParam,
		Msg:  msg,
	}
}

func MakeNotFoundResp(msg string) *Resp {
	return &Resp{
		Code: CodeNotFound,
		Msg:  msg,
	}
}
