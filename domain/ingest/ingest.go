package ingest

import (
	"context"
	"io"
	"time"

	"deeptrace-backend-controller/repository/metadata"
	"deeptrace-backend-controller/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

/*
Setting 导入流程的依赖。

	Location 解析不带时区的发送时间时使用的时区；
	OnMutation 可选，成功写入后同步调用，用于使查询缓存失效；
*/
type Setting struct {
	GetMetadataDatabase func() *gorm.DB
	Location            *time.Location
	Logger              *logrus.Logger
	OnMutation          func()
}

var globalSetting Setting

func Init(setting *Setting) {
	globalSetting = *setting
}

/*
Ingest 导入一个 xlsx 或 csv 表格，每个非空数据行写入一条待分析的线索。

所有行在一个事务中写入，任何失败都不会留下部分数据，此时返回 (0, err)。
*/
func Ingest(ctx context.Context, filename string, r io.Reader) (int, error) {
	return ingest(&globalSetting, ctx, filename, r)
}

func ingest(setting *Setting, ctx context.Context, filename string, r io.Reader) (int, error) {
	rows, err := readTable(filename, r)
	if err != nil {
		return 0, utils.WrapErrorf(err, "read table [%s] fail", filename)
	}

	if len(rows) == 0 {
		return 0, utils.WrapErrorf(ErrEmptyUpload, "file [%s]", filename)
	}

	loc := setting.Location
	if loc == nil {
		loc = time.Local
	}

	fields := mapHeader(rows[0])
	now := time.Now()
	clues := make([]metadata.Clue, 0, len(rows)-1)
	for _, row := range rows[1:] {
		clue, ok := rowToClue(fields, row, loc, now)
		if !ok {
			continue
		}
		clues = append(clues, clue)
	}

	if len(clues) == 0 {
		setting.Logger.Warnf("file [%s] contains no data row", filename)
		return 0, nil
	}

	err = setting.GetMetadataDatabase().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return metadata.CreateClues(tx, clues)
	})
	if err != nil {
		return 0, utils.WrapErrorf(err, "save clues of [%s] fail", filename)
	}

	setting.Logger.Infof("ingest file [%s]: %d clues", filename, len(clues))

	if setting.OnMutation != nil {
		setting.OnMutation()
	}

	return len(clues), nil
}
