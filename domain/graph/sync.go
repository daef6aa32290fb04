package graph

import (
	"context"
	"time"

	"deeptrace-backend-controller/repository/metadata"
	"deeptrace-backend-controller/utils"
	"gorm.io/gorm"
)

type SyncResult struct {
	Clues      int       `json:"clues"`
	Mentions   int       `json:"mentions"`
	Failed     int       `json:"failed"`
	StartTime  time.Time `json:"start_time"`
	FinishTime time.Time `json:"finish_time"`
}

/*
syncGraph 把所有已分析的线索重新同步到图数据库，用于图数据库后启用或数据丢失后的重建。

同步是幂等的，单条线索失败只记录日志并计数。
*/
func syncGraph(setting *SyncSetting, ctx context.Context) (*SyncResult, error) {
	syncer := graphSyncer{
		setting: setting,
		ctx:     ctx,
		result:  &SyncResult{StartTime: time.Now()},
	}

	batchSize := setting.BatchSize
	if batchSize <= 0 {
		batchSize = 128
	}

	var batchData []metadata.Clue
	err := setting.GetMetadataDatabase().WithContext(ctx).
		Select("id", "subject", "org").
		Where("process_status = ?", metadata.ClueStatusProcessed).
		Order("id").
		FindInBatches(&batchData, batchSize, func(tx *gorm.DB, batchNum int) error {
			err := syncer.syncBatch(tx, batchData)
			batchData = nil
			return err
		}).Error

	syncer.result.FinishTime = time.Now()
	if err != nil {
		return syncer.result, utils.WrapError(err, "sync graph fail")
	}

	setting.Logger.Infof("graph sync finish: clues=%d mentions=%d failed=%d",
		syncer.result.Clues, syncer.result.Mentions, syncer.result.Failed)
	return syncer.result, nil
}

type graphSyncer struct {
	setting *SyncSetting
	ctx     context.Context
	result  *SyncResult
}

func (s *graphSyncer) syncBatch(tx *gorm.DB, clues []metadata.Clue) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}

	ids := make([]uint, 0, len(clues))
	for _, clue := range clues {
		ids = append(ids, clue.ID)
	}

	entities, err := metadata.EntitiesOfClues(tx, ids)
	if err != nil {
		return utils.WrapError(err, "collect entities fail")
	}

	for i := range clues {
		clue := &clues[i]
		s.result.Clues++

		if err := s.setting.Mirror.MirrorClue(s.ctx, clue, entities[clue.ID]); err != nil {
			s.setting.Logger.WithError(err).Warnf("sync clue[%d] fail: %s", clue.ID, err.Error())
			s.result.Failed++
			continue
		}
		s.result.Mentions += len(entities[clue.ID])
	}

	return nil
}
