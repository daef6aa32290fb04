package analysiscall

import "time"

/*
RequestSchema 一次抽取请求。

	RetryFailed 本次是否重新处理分析失败的线索；
	NotifyEmail 运行结束后额外通知的邮箱，可为空；
*/
type RequestSchema struct {
	RequestID   string    `json:"request_id"`
	RetryFailed bool      `json:"retry_failed"`
	NotifyEmail string    `json:"notify_email"`
	RequestedAt time.Time `json:"requested_at"`
}
