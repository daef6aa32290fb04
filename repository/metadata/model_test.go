package metadata

import (
	"fmt"
	"net"
	"testing"
	"time"

	"deeptrace-backend-controller/logging"
	"deeptrace-backend-controller/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestMigration(t *testing.T) {
	conn, err := net.DialTimeout("tcp", "localhost:3306", 200*time.Millisecond)
	if err != nil {
		t.Skip("mysql is not reachable on localhost:3306")
	}
	_ = conn.Close()

	cfg := GenerateTestConfig()
	cfg.CheckMigration = true
	_, err = CreateDatabase(cfg)
	assert.Nil(t, err)
}

func newTestDatabase(t *testing.T) *gorm.DB {
	logging.SetDefaultConfig(logging.GenerateTestConfig(t))

	database, err := CreateDatabase(GenerateSQLiteTestConfig(t))
	require.Nil(t, err)
	return database
}

func TestUpsertEntity_Idempotent(t *testing.T) {
	database := newTestDatabase(t)

	first, err := UpsertEntity(database, "张三", EntityTypePerson)
	require.Nil(t, err)
	second, err := UpsertEntity(database, " 张三 ", EntityTypePerson)
	require.Nil(t, err)
	assert.Equal(t, first.ID, second.ID)

	other, err := UpsertEntity(database, "张三", EntityTypeLocation)
	require.Nil(t, err)
	assert.NotEqual(t, first.ID, other.ID)

	var count int64
	require.Nil(t, database.Model(&Entity{}).Where("name = ?", "张三").Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestLinkClueEntity_Idempotent(t *testing.T) {
	database := newTestDatabase(t)

	clues := []Clue{{Subject: utils.StrToPtr("s")}}
	require.Nil(t, CreateClues(database, clues))
	var clue Clue
	require.Nil(t, database.First(&clue).Error)

	entity, err := UpsertEntity(database, "13912345678", EntityTypePhone)
	require.Nil(t, err)

	require.Nil(t, LinkClueEntity(database, clue.ID, entity.ID))
	require.Nil(t, LinkClueEntity(database, clue.ID, entity.ID))

	var count int64
	require.Nil(t, database.Model(&Relation{}).
		Where("clue_id = ? AND entity_id = ?", clue.ID, entity.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestMarkClueStatus_TransitionsOnce(t *testing.T) {
	database := newTestDatabase(t)

	require.Nil(t, CreateClues(database, []Clue{{Subject: utils.StrToPtr("a")}}))
	var clue Clue
	require.Nil(t, database.First(&clue).Error)
	assert.Equal(t, ClueStatusPending, clue.ProcessStatus)

	changed, err := MarkClueStatus(database, clue.ID, ClueStatusProcessed, ClueStatusPending)
	require.Nil(t, err)
	assert.True(t, changed)

	changed, err = MarkClueStatus(database, clue.ID, ClueStatusFailed, ClueStatusPending)
	require.Nil(t, err)
	assert.False(t, changed)

	stored, err := TakeClue(database, clue.ID)
	require.Nil(t, err)
	assert.Equal(t, ClueStatusProcessed, stored.ProcessStatus)

	counts, err := CountCluesByStatus(database)
	require.Nil(t, err)
	assert.Equal(t, int64(1), counts[ClueStatusProcessed])
	assert.Equal(t, int64(0), counts[ClueStatusPending])
	assert.Equal(t, int64(0), counts[ClueStatusFailed])
}

func TestFilterClues_LimitAndOrder(t *testing.T) {
	database := newTestDatabase(t)

	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	clues := make([]Clue, 0, 320)
	for i := 0; i < 320; i++ {
		sendTime := base.Add(time.Duration(i) * time.Hour)
		org := "甲机构"
		if i%2 == 1 {
			org = "乙机构"
		}
		clues = append(clues, Clue{
			Subject:  utils.StrToPtr(fmt.Sprintf("subject-%d", i)),
			SendTime: &sendTime,
			Org:      utils.StrToPtr(org),
		})
	}
	require.Nil(t, CreateClues(database, clues))

	rows, err := FilterClues(database, &ClueFilter{}, 300)
	require.Nil(t, err)
	require.Len(t, rows, 300)
	for i := 1; i < len(rows); i++ {
		assert.False(t, rows[i].SendTime.After(*rows[i-1].SendTime))
	}
	assert.Equal(t, "subject-319", *rows[0].Subject)

	rows, err = FilterClues(database, &ClueFilter{Org: "无此机构"}, 300)
	require.Nil(t, err)
	assert.Empty(t, rows)

	day := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	rows, err = FilterClues(database, &ClueFilter{Org: "甲机构", DayStart: &day}, 300)
	require.Nil(t, err)
	assert.Len(t, rows, 12)

	rows, err = FilterClues(database, &ClueFilter{Keyword: "subject-31"}, 300)
	require.Nil(t, err)
	assert.Len(t, rows, 11)

	orgs, err := DistinctOrgs(database)
	require.Nil(t, err)
	assert.Equal(t, []string{"乙机构", "甲机构"}, orgs)

	times, err := SendTimes(database, "乙机构")
	require.Nil(t, err)
	assert.Len(t, times, 160)
}

func TestTopEntitiesAndEdges(t *testing.T) {
	database := newTestDatabase(t)

	require.Nil(t, CreateClues(database, []Clue{
		{Subject: utils.StrToPtr("c1")},
		{Subject: utils.StrToPtr("c2")},
	}))
	var clues []Clue
	require.Nil(t, database.Order("id").Find(&clues).Error)

	person, err := UpsertEntity(database, "李四", EntityTypePerson)
	require.Nil(t, err)
	place, err := UpsertEntity(database, "上海", EntityTypeLocation)
	require.Nil(t, err)

	require.Nil(t, LinkClueEntity(database, clues[0].ID, person.ID))
	require.Nil(t, LinkClueEntity(database, clues[1].ID, person.ID))
	require.Nil(t, LinkClueEntity(database, clues[1].ID, place.ID))

	ids := []uint{clues[0].ID, clues[1].ID}
	top, err := TopEntities(database, ids, 100)
	require.Nil(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "李四", top[0].Name)
	assert.Equal(t, int64(2), top[0].Weight)
	assert.Equal(t, EntityTypePerson, top[0].Type)

	edges, err := RelationEdges(database, []uint{clues[1].ID}, 500)
	require.Nil(t, err)
	assert.Len(t, edges, 2)

	keyword, err := FilterClues(database, &ClueFilter{Keyword: "上海"}, 300)
	require.Nil(t, err)
	require.Len(t, keyword, 1)
	assert.Equal(t, clues[1].ID, keyword[0].ID)

	empty, err := TopEntities(database, nil, 100)
	require.Nil(t, err)
	assert.Empty(t, empty)
}

func TestRelationEdges_CapKeepsRecentClues(t *testing.T) {
	database := newTestDatabase(t)

	older := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(24 * time.Hour)
	// id 较大的线索发送时间更早
	require.Nil(t, CreateClues(database, []Clue{
		{Subject: utils.StrToPtr("recent"), SendTime: &newer},
		{Subject: utils.StrToPtr("old"), SendTime: &older},
	}))
	var clues []Clue
	require.Nil(t, database.Order("id").Find(&clues).Error)

	person, err := UpsertEntity(database, "王五", EntityTypePerson)
	require.Nil(t, err)
	require.Nil(t, LinkClueEntity(database, clues[0].ID, person.ID))
	require.Nil(t, LinkClueEntity(database, clues[1].ID, person.ID))

	edges, err := RelationEdges(database, []uint{clues[0].ID, clues[1].ID}, 1)
	require.Nil(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, clues[0].ID, edges[0].ClueID)
}
