package extraction

import (
	"context"
	"sync"

	"deeptrace-backend-controller/domain/recognizer"
	"deeptrace-backend-controller/repository/metadata"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// GraphMirror 接收已分析线索及其实体，例如同步到图数据库。
type GraphMirror interface {
	MirrorClue(ctx context.Context, clue *metadata.Clue, entities []metadata.Entity) error
}

/*
Setting 抽取流程的依赖。

	RetryFailed 为 true 时，每次运行也会重新处理状态为失败的线索；
	Mirror 可选，分析成功的线索会同步给它，同步失败只记录日志；
	OnMutation 可选，运行结束后同步调用，用于使查询缓存失效；
*/
type Setting struct {
	GetMetadataDatabase func() *gorm.DB
	Recognizer          recognizer.Recognizer
	Logger              *logrus.Logger
	RetryFailed         bool
	Mirror              GraphMirror
	OnMutation          func()
}

var (
	globalSetting Setting
	runLock       sync.Mutex
)

func Init(setting *Setting) {
	globalSetting = *setting
}

func Run(ctx context.Context, options *RunOptions) (*RunResult, error) {
	return run(&globalSetting, ctx, options)
}
