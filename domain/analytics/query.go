package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"deeptrace-backend-controller/repository/metadata"
	"deeptrace-backend-controller/utils"
)

const (
	MaxClues        = 300
	MaxEntities     = 100
	MaxRelations    = 500
	MaxGraphSources = 50

	DateLayout = "2006-01-02"
)

var ErrInvalidDate = errors.New("date should be formatted as YYYY-MM-DD")

/*
Filter 分析查询的筛选条件，空字符串表示不限制。

	Date 形如 2024-05-01，按配置的时区取当天；
	Keyword 对标题、正文和关联实体名做子串匹配；
*/
type Filter struct {
	Org     string `json:"org"`
	Date    string `json:"date"`
	Keyword string `json:"keyword"`
}

func (f *Filter) toClueFilter(loc *time.Location) (*metadata.ClueFilter, error) {
	ret := metadata.ClueFilter{
		Org:     f.Org,
		Keyword: f.Keyword,
	}

	if len(f.Date) != 0 {
		day, err := time.ParseInLocation(DateLayout, f.Date, loc)
		if err != nil {
			return nil, utils.WrapErrorf(ErrInvalidDate, "parse date [%s] fail: %s", f.Date, err)
		}
		ret.DayStart = &day
	}

	return &ret, nil
}

func (f *Filter) cacheKey() string {
	return fmt.Sprintf("analytics:%q:%q:%q", f.Org, f.Date, f.Keyword)
}

/*
Bundle 一次分析查询的结果。

	Clues 至多 MaxClues 条，按发送时间倒序；
	Entities 这些线索中被提及最多的至多 MaxEntities 个实体；
	Relations 最新的 MaxGraphSources 条线索上的至多 MaxRelations 条边；
*/
type Bundle struct {
	Clues     []metadata.ClueRow      `json:"clues"`
	Entities  []metadata.EntityWeight `json:"entities"`
	Relations []metadata.RelationEdge `json:"relations"`
}

// StatusCounts 各处理状态的线索数量。
type StatusCounts struct {
	Pending   int64 `json:"pending"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
}

func organizations(setting *Setting, ctx context.Context) ([]string, error) {
	var ret []string
	loadCtx := context.WithoutCancel(ctx)
	err := setting.Cache.GetOrLoad(ctx, "orgs", setting.OptionTTL, func() (any, error) {
		return metadata.DistinctOrgs(setting.GetMetadataDatabase().WithContext(loadCtx))
	}, &ret)
	if err != nil {
		return nil, utils.WrapError(err, "load organizations fail")
	}
	return ret, nil
}

// dates 返回不重复的日期（配置的时区），按时间倒序。
func dates(setting *Setting, ctx context.Context, org string) ([]string, error) {
	var ret []string
	loadCtx := context.WithoutCancel(ctx)
	err := setting.Cache.GetOrLoad(ctx, fmt.Sprintf("dates:%q", org), setting.OptionTTL, func() (any, error) {
		times, err := metadata.SendTimes(setting.GetMetadataDatabase().WithContext(loadCtx), org)
		if err != nil {
			return nil, err
		}
		return bucketDays(times, setting.Location), nil
	}, &ret)
	if err != nil {
		return nil, utils.WrapErrorf(err, "load dates of org [%s] fail", org)
	}
	return ret, nil
}

// bucketDays 把已按时间倒序排列的时刻转换为不重复的日期。
func bucketDays(times []time.Time, loc *time.Location) []string {
	ret := make([]string, 0)
	seen := make(map[string]struct{})
	for _, t := range times {
		day := t.In(loc).Format(DateLayout)
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		ret = append(ret, day)
	}
	return ret
}

func analytics(setting *Setting, ctx context.Context, filter Filter) (*Bundle, error) {
	clueFilter, err := filter.toClueFilter(setting.Location)
	if err != nil {
		return nil, err
	}

	var ret Bundle
	// 并发的相同查询共享一次加载，加载不随发起者的请求取消
	loadCtx := context.WithoutCancel(ctx)
	err = setting.Cache.GetOrLoad(ctx, filter.cacheKey(), setting.AnalyticsTTL, func() (any, error) {
		return loadBundle(setting, loadCtx, clueFilter)
	}, &ret)
	if err != nil {
		return nil, utils.WrapErrorf(err, "load analytics with %+v fail", filter)
	}

	return &ret, nil
}

func loadBundle(setting *Setting, ctx context.Context, filter *metadata.ClueFilter) (*Bundle, error) {
	db := setting.GetMetadataDatabase().WithContext(ctx)

	clues, err := metadata.FilterClues(db, filter, MaxClues)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(clues))
	for _, clue := range clues {
		ids = append(ids, clue.ID)
	}

	entities, err := metadata.TopEntities(db, ids, MaxEntities)
	if err != nil {
		return nil, err
	}

	graphIDs := ids
	if len(graphIDs) > MaxGraphSources {
		graphIDs = graphIDs[:MaxGraphSources]
	}

	relations, err := metadata.RelationEdges(db, graphIDs, MaxRelations)
	if err != nil {
		return nil, err
	}

	return &Bundle{
		Clues:     clues,
		Entities:  entities,
		Relations: relations,
	}, nil
}

// status 不经过缓存，待分析数量需要在导入后立即可见。
func status(setting *Setting, ctx context.Context) (*StatusCounts, error) {
	counts, err := metadata.CountCluesByStatus(setting.GetMetadataDatabase().WithContext(ctx))
	if err != nil {
		return nil, utils.WrapError(err, "count clue status fail")
	}

	return &StatusCounts{
		Pending:   counts[metadata.ClueStatusPending],
		Processed: counts[metadata.ClueStatusProcessed],
		Failed:    counts[metadata.ClueStatusFailed],
	}, nil
}
