package graph

import (
	"context"

	"deeptrace-backend-controller/domain/extraction"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

/*
SyncSetting 全量同步图数据库的依赖。

	Mirror 接收每条已分析线索及其实体，与抽取流程使用同一个实现；
	BatchSize 每批读取的线索数，为 0 时使用 128；
*/
type SyncSetting struct {
	GetMetadataDatabase func() *gorm.DB
	Mirror              extraction.GraphMirror
	Logger              *logrus.Logger
	BatchSize           int
}

var globalSetting SyncSetting

func Init(setting *SyncSetting) {
	globalSetting = *setting
}

func Sync(ctx context.Context) (*SyncResult, error) {
	return syncGraph(&globalSetting, ctx)
}
