package analytics

import (
	"context"
	"time"

	"deeptrace-backend-controller/repository/querycache"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	DefaultOptionTTL    = 10 * time.Minute
	DefaultAnalyticsTTL = 5 * time.Minute
)

/*
Setting 查询层的依赖。

	Cache 查询结果缓存，机构、日期列表使用 OptionTTL，分析结果使用 AnalyticsTTL；
	Location 划分“某一天”所用的时区；
*/
type Setting struct {
	GetMetadataDatabase func() *gorm.DB
	Cache               querycache.Cache
	Location            *time.Location
	OptionTTL           time.Duration
	AnalyticsTTL        time.Duration
	Logger              *logrus.Logger
}

var globalSetting Setting

func Init(setting *Setting) {
	globalSetting = *setting
	fillDefault(&globalSetting)
}

func fillDefault(setting *Setting) {
	if setting.Cache == nil {
		setting.Cache = querycache.NewMemory()
	}
	if setting.Location == nil {
		setting.Location = time.Local
	}
	if setting.OptionTTL <= 0 {
		setting.OptionTTL = DefaultOptionTTL
	}
	if setting.AnalyticsTTL <= 0 {
		setting.AnalyticsTTL = DefaultAnalyticsTTL
	}
}

// Location 划分日期所用的时区。
func Location() *time.Location {
	return globalSetting.Location
}

// InvalidateAll 使所有缓存的查询结果失效，导入与抽取写入数据后调用。
func InvalidateAll(ctx context.Context) error {
	return invalidateAll(&globalSetting, ctx)
}

func invalidateAll(setting *Setting, ctx context.Context) error {
	if err := setting.Cache.InvalidateAll(ctx); err != nil {
		setting.Logger.WithError(err).Errorf("invalidate query cache fail: %s", err.Error())
		return err
	}
	return nil
}

func Organizations(ctx context.Context) ([]string, error) {
	return organizations(&globalSetting, ctx)
}

func Dates(ctx context.Context, org string) ([]string, error) {
	return dates(&globalSetting, ctx, org)
}

func Analytics(ctx context.Context, filter Filter) (*Bundle, error) {
	return analytics(&globalSetting, ctx, filter)
}

func Status(ctx context.Context) (*StatusCounts, error) {
	return status(&globalSetting, ctx)
}

func Detail(ctx context.Context, ref NodeRef) (*NodeDetail, error) {
	return detail(&globalSetting, ctx, ref)
}
