package graph

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"deeptrace-backend-controller/logging"
	"deeptrace-backend-controller/repository/metadata"
	"deeptrace-backend-controller/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingMirror struct {
	mirrored map[uint][]string
	failOn   uint
}

func (m *recordingMirror) MirrorClue(_ context.Context, clue *metadata.Clue, entities []metadata.Entity) error {
	if clue.ID == m.failOn {
		return errors.New("neo4j down")
	}

	names := make([]string, 0, len(entities))
	for _, e := range entities {
		names = append(names, e.Name)
	}
	m.mirrored[clue.ID] = names
	return nil
}

func TestSync(t *testing.T) {
	logging.SetDefaultConfig(logging.GenerateTestConfig(t))

	database, err := metadata.CreateDatabase(metadata.GenerateSQLiteTestConfig(t))
	require.Nil(t, err)

	clues := make([]metadata.Clue, 0)
	for i := 0; i < 5; i++ {
		clues = append(clues, metadata.Clue{Subject: utils.StrToPtr(fmt.Sprintf("clue-%d", i))})
	}
	require.Nil(t, metadata.CreateClues(database, clues))

	zhang, err := metadata.UpsertEntity(database, "张三", metadata.EntityTypePerson)
	require.Nil(t, err)
	beijing, err := metadata.UpsertEntity(database, "北京", metadata.EntityTypeLocation)
	require.Nil(t, err)

	for i, clue := range clues {
		require.Nil(t, metadata.LinkClueEntity(database, clue.ID, zhang.ID))
		if i%2 == 0 {
			require.Nil(t, metadata.LinkClueEntity(database, clue.ID, beijing.ID))
		}
		// 最后一条保持待分析，不参与同步
		if i < 4 {
			_, err := metadata.MarkClueStatus(database, clue.ID, metadata.ClueStatusProcessed, metadata.ClueStatusPending)
			require.Nil(t, err)
		}
	}

	mirror := &recordingMirror{mirrored: make(map[uint][]string), failOn: clues[1].ID}
	setting := &SyncSetting{
		GetMetadataDatabase: func() *gorm.DB {
			return database
		},
		Mirror:    mirror,
		Logger:    logging.NewLogger(),
		BatchSize: 3,
	}

	result, err := syncGraph(setting, context.TODO())
	require.Nil(t, err)
	assert.Equal(t, 4, result.Clues)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 5, result.Mentions)

	assert.Equal(t, map[uint][]string{
		clues[0].ID: {"张三", "北京"},
		clues[2].ID: {"张三", "北京"},
		clues[3].ID: {"张三"},
	}, mirror.mirrored)
}
