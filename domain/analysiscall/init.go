package analysiscall

import (
	"context"
	"errors"
	"sync"

	"deeptrace-backend-controller/domain/extraction"
	"github.com/sirupsen/logrus"
)

const QueueAnalysisRequest = "clue_analysis_request"

var ErrAsyncDisabled = errors.New("asynchronous analysis is not enabled")

/*
Setting 抽取触发的依赖。

	Run 执行一次抽取，通常为 extraction.Run；
	NotifyTo 每次运行结束后都会通知的邮箱；
	MQ 为 nil 时只支持同步触发；
*/
type Setting struct {
	Run      func(ctx context.Context, options *extraction.RunOptions) (*extraction.RunResult, error)
	NotifyTo []string
	Logger   *logrus.Logger
	MQ       *MQConnectionConfig
}

var (
	globalSetting Setting
	globalBroker  *requestBroker
	brokerLock    sync.RWMutex
)

func Init(setting *Setting) error {
	globalSetting = *setting

	if setting.MQ == nil {
		return nil
	}

	broker, err := dialRequestBroker(setting.MQ, QueueAnalysisRequest, setting.Logger)
	if err != nil {
		return err
	}

	if err := broker.Consume(buildReceive(&globalSetting)); err != nil {
		_ = broker.Close()
		return err
	}

	brokerLock.Lock()
	globalBroker = broker
	brokerLock.Unlock()
	return nil
}

// Async 是否通过消息队列触发抽取。
func Async() bool {
	brokerLock.RLock()
	defer brokerLock.RUnlock()
	return globalBroker != nil
}

func Close() {
	brokerLock.Lock()
	broker := globalBroker
	globalBroker = nil
	brokerLock.Unlock()

	if broker != nil {
		if err := broker.Close(); err != nil {
			broker.logger.WithError(err).Error("close request broker fail")
		}
	}
}
