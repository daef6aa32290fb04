package metadata

import (
	"time"

	"deeptrace-backend-controller/utils"
	"gorm.io/gorm"
)

/*
ClueFilter 线索筛选条件，各条件之间为“且”的关系，零值表示不限制。

	Org 归属机构，精确匹配；
	DayStart 某一天的起始时刻，筛选 [DayStart, DayStart+24h) 内发送的线索；
	Keyword 关键词，对标题、正文以及线索关联的实体名做子串匹配；
*/
type ClueFilter struct {
	Org      string
	DayStart *time.Time
	Keyword  string
}

// ClueRow 分析查询返回的线索投影。
type ClueRow struct {
	ID          uint       `json:"id"`
	Subject     *string    `json:"subject"`
	SendTime    *time.Time `json:"send_time"`
	Org         *string    `json:"org"`
	SourceEmail *string    `json:"source_email"`
	Content     *string    `json:"content"`
}

// EntityWeight 实体及其在结果集中被提及的次数。
type EntityWeight struct {
	ID     uint       `json:"id"`
	Name   string     `json:"name"`
	Type   EntityType `json:"type"`
	Weight int64      `json:"weight"`
}

// RelationEdge 线索与实体之间的一条边。
type RelationEdge struct {
	ClueID   uint       `json:"clue_id"`
	EntityID uint       `json:"eid"`
	Name     string     `json:"name"`
	Type     EntityType `json:"type"`
}

func applyClueFilter(db *gorm.DB, filter *ClueFilter) *gorm.DB {
	if len(filter.Org) != 0 {
		db = db.Where("c.org = ?", filter.Org)
	}

	if filter.DayStart != nil {
		begin := filter.DayStart.UTC()
		db = db.Where("c.send_time >= ? AND c.send_time < ?", begin, begin.Add(24*time.Hour))
	}

	if len(filter.Keyword) != 0 {
		wildcard := "%" + filter.Keyword + "%"
		db = db.Where(`(c.content LIKE ? OR c.subject LIKE ? OR EXISTS (
			SELECT 1 FROM t_relations r JOIN t_entities e ON r.entity_id = e.id
			WHERE r.clue_id = c.id AND e.name LIKE ?))`, wildcard, wildcard, wildcard)
	}

	return db
}

// FilterClues 按发送时间倒序返回至多 limit 条符合条件的线索。
func FilterClues(db *gorm.DB, filter *ClueFilter, limit int) ([]ClueRow, error) {
	rows := make([]ClueRow, 0)
	query := db.Table("t_clues AS c").
		Select("c.id, c.subject, c.send_time, c.org, c.source_email, c.content")
	err := applyClueFilter(query, filter).
		Order("c.send_time DESC").
		Order("c.id DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, utils.WrapErrorf(err, "filter clues with %+v fail", *filter)
	}

	return rows, nil
}

// TopEntities 返回在给定线索中被提及次数最多的至多 limit 个实体。
func TopEntities(db *gorm.DB, clueIDs []uint, limit int) ([]EntityWeight, error) {
	ret := make([]EntityWeight, 0)
	if len(clueIDs) == 0 {
		return ret, nil
	}

	err := db.Table("t_entities AS e").
		Select("e.id, e.name, e.type, COUNT(*) AS weight").
		Joins("JOIN t_relations r ON e.id = r.entity_id").
		Where("r.clue_id IN ?", clueIDs).
		Group("e.id, e.name, e.type").
		Order("weight DESC").
		Order("e.id").
		Limit(limit).
		Scan(&ret).Error
	if err != nil {
		return nil, utils.WrapError(err, "select top entities fail")
	}

	return ret, nil
}

// RelationEdges 返回给定线索的至多 limit 条关联边，超出时保留发送时间最近的线索的边。
func RelationEdges(db *gorm.DB, clueIDs []uint, limit int) ([]RelationEdge, error) {
	ret := make([]RelationEdge, 0)
	if len(clueIDs) == 0 {
		return ret, nil
	}

	err := db.Table("t_relations AS r").
		Select("r.clue_id, e.id AS entity_id, e.name, e.type").
		Joins("JOIN t_entities e ON r.entity_id = e.id").
		Joins("JOIN t_clues c ON r.clue_id = c.id").
		Where("r.clue_id IN ?", clueIDs).
		Order("c.send_time DESC").
		Order("c.id DESC").
		Order("e.id").
		Limit(limit).
		Scan(&ret).Error
	if err != nil {
		return nil, utils.WrapError(err, "select relation edges fail")
	}

	return ret, nil
}

// DistinctOrgs 返回所有非空的机构名，按名称排序。
func DistinctOrgs(db *gorm.DB) ([]string, error) {
	orgs := make([]string, 0)
	err := db.Model(&Clue{}).
		Distinct("org").
		Where("org IS NOT NULL AND org != ''").
		Order("org").
		Pluck("org", &orgs).Error
	if err != nil {
		return nil, utils.WrapError(err, "select distinct org fail")
	}

	return orgs, nil
}

// SendTimes 返回（可选地限定机构的）所有非空发送时间，按时间倒序。
func SendTimes(db *gorm.DB, org string) ([]time.Time, error) {
	query := db.Model(&Clue{}).Where("send_time IS NOT NULL")
	if len(org) != 0 {
		query = query.Where("org = ?", org)
	}

	times := make([]time.Time, 0)
	err := query.Order("send_time DESC").Pluck("send_time", &times).Error
	if err != nil {
		return nil, utils.WrapErrorf(err, "select send_time of org [%s] fail", org)
	}

	return times, nil
}
