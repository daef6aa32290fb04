package analysiscall

import (
	"context"
	"errors"
	"time"

	"deeptrace-backend-controller/domain/extraction"
	"deeptrace-backend-controller/utils"
	emailutils "deeptrace-backend-controller/utils/email"
	"github.com/google/uuid"
)

func NewRequest(retryFailed bool, notifyEmail string) RequestSchema {
	return RequestSchema{
		RequestID:   uuid.NewString(),
		RetryFailed: retryFailed,
		NotifyEmail: notifyEmail,
		RequestedAt: time.Now(),
	}
}

// Request 把抽取请求投递到队列，由监听者异步执行。
func Request(req RequestSchema) error {
	brokerLock.RLock()
	defer brokerLock.RUnlock()

	if globalBroker == nil {
		return ErrAsyncDisabled
	}

	return globalBroker.Publish(req)
}

// Analyze 同步执行一次抽取，结束后发送摘要邮件。
func Analyze(ctx context.Context, req RequestSchema) (*extraction.RunResult, error) {
	return analyze(&globalSetting, ctx, req)
}

func analyze(setting *Setting, ctx context.Context, req RequestSchema) (*extraction.RunResult, error) {
	result, err := setting.Run(ctx, &extraction.RunOptions{RetryFailed: req.RetryFailed})
	if err != nil {
		return result, utils.WrapErrorf(err, "run analysis [%s] fail", req.RequestID)
	}

	setting.Logger.Infof("analysis [%s] finish: attempted=%d processed=%d failed=%d",
		req.RequestID, result.Attempted, result.Processed, result.Failed)

	notify(setting, req, result)
	return result, nil
}

func notify(setting *Setting, req RequestSchema, result *extraction.RunResult) {
	receivers := make([]string, 0, len(setting.NotifyTo)+1)
	receivers = append(receivers, setting.NotifyTo...)
	if len(req.NotifyEmail) != 0 {
		receivers = append(receivers, req.NotifyEmail)
	}

	if len(receivers) == 0 || result.Attempted == 0 {
		return
	}

	if !emailutils.Enabled() {
		setting.Logger.Debugf("email disabled, skip notifying %v", receivers)
		return
	}

	for i := 0; i < 3; i++ {
		err := sendRunResultEmail(receivers, req.RequestID, result)
		if err == nil {
			return
		}

		setting.Logger.WithError(err).Errorf("send analysis result fail: %s", err.Error())
	}
}

var errEmptyBody = errors.New("message body is empty")

func buildReceive(setting *Setting) func(req RequestSchema) error {
	return func(req RequestSchema) error {
		_, err := analyze(setting, context.Background(), req)
		return err
	}
}
