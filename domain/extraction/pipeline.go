package extraction

import (
	"context"
	"errors"
	"time"

	"deeptrace-backend-controller/repository/metadata"
	"deeptrace-backend-controller/utils"
	"gorm.io/gorm"
)

var errClueTaken = errors.New("clue status changed by another run")

/*
RunOptions 单次运行的参数。

	RetryFailed 本次运行是否重新处理失败的线索（与 Setting.RetryFailed 取或）；
	Progress 可选，每处理完一条线索调用一次；
*/
type RunOptions struct {
	RetryFailed bool
	Progress    func(done, total int)
}

/*
RunResult 一次抽取运行的结果。

	Attempted 尝试处理的线索数；
	Processed、Failed 分别为标记为已分析、分析失败的线索数；
	Skipped 在处理期间已被其它运行改变状态的线索数；
	Mentions 成功写入的实体提及数（去重后）；
*/
type RunResult struct {
	Attempted  int       `json:"attempted"`
	Processed  int       `json:"processed"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	Mentions   int       `json:"mentions"`
	FailedIDs  []uint    `json:"failed_ids"`
	StartTime  time.Time `json:"start_time"`
	FinishTime time.Time `json:"finish_time"`
}

type runner struct {
	setting  *Setting
	options  *RunOptions
	ctx      context.Context
	db       *gorm.DB
	statuses []metadata.ClueStatus
	result   *RunResult
}

func run(setting *Setting, ctx context.Context, options *RunOptions) (*RunResult, error) {
	if options == nil {
		options = &RunOptions{}
	}

	// 同一进程内的抽取串行执行
	runLock.Lock()
	defer runLock.Unlock()

	r := runner{
		setting: setting,
		options: options,
		ctx:     ctx,
		db:      setting.GetMetadataDatabase().WithContext(ctx),
		result:  &RunResult{StartTime: time.Now(), FailedIDs: make([]uint, 0)},
	}

	r.statuses = []metadata.ClueStatus{metadata.ClueStatusPending}
	if options.RetryFailed || setting.RetryFailed {
		r.statuses = append(r.statuses, metadata.ClueStatusFailed)
	}

	err := r.run()
	r.result.FinishTime = time.Now()
	return r.result, err
}

func (r *runner) run() error {
	clues, err := metadata.ListCluesByStatus(r.db, r.statuses...)
	if err != nil {
		return utils.WrapError(err, "select clues to analyze fail")
	}

	logger := r.setting.Logger
	logger.Infof("analysis start: %d clues with status %v", len(clues), r.statuses)

	if len(clues) == 0 {
		return nil
	}

	defer func() {
		if r.setting.OnMutation != nil {
			r.setting.OnMutation()
		}
	}()

	total := len(clues)
	for i := range clues {
		if err := r.ctx.Err(); err != nil {
			logger.Warnf("analysis interrupted after %d/%d clues", i, total)
			return utils.WrapError(err, "analysis interrupted")
		}

		r.result.Attempted++
		r.processClue(&clues[i])

		if r.options.Progress != nil {
			r.options.Progress(i+1, total)
		}
		if (i+1)%50 == 0 || i+1 == total {
			logger.Infof("analysis progress %d/%d", i+1, total)
		}
	}

	logger.Infof("analysis finish: attempted=%d processed=%d failed=%d skipped=%d",
		r.result.Attempted, r.result.Processed, r.result.Failed, r.result.Skipped)

	return nil
}

/*
processClue 处理一条线索：识别实体，在一个事务内写入实体、关系并标记为已分析；

任一步骤出错时事务回滚，线索被单独标记为分析失败，不影响后续线索。
*/
func (r *runner) processClue(clue *metadata.Clue) {
	logger := r.setting.Logger

	var entities []metadata.Entity
	err := func() error {
		mentions, err := ExtractEntities(r.ctx, r.setting.Recognizer, ClueText(clue))
		if err != nil {
			return utils.WrapError(err, "extract entities fail")
		}

		return r.db.Transaction(func(tx *gorm.DB) error {
			entities = make([]metadata.Entity, 0, len(mentions))
			for _, mention := range mentions {
				entity, err := metadata.UpsertEntity(tx, mention.Name, mention.Type)
				if err != nil {
					return utils.WrapError(err, "upsert entity fail")
				}

				if err := metadata.LinkClueEntity(tx, clue.ID, entity.ID); err != nil {
					return utils.WrapError(err, "link clue entity fail")
				}

				entities = append(entities, *entity)
			}

			changed, err := metadata.MarkClueStatus(tx, clue.ID, metadata.ClueStatusProcessed, r.statuses...)
			if err != nil {
				return utils.WrapError(err, "mark clue processed fail")
			}
			if !changed {
				return errClueTaken
			}

			return nil
		})
	}()

	if errors.Is(err, errClueTaken) {
		logger.Warnf("clue[%d] skipped: %s", clue.ID, err)
		r.result.Skipped++
		return
	}

	if err != nil {
		logger.WithError(err).Errorf("analyze clue[%d] fail: %s", clue.ID, err.Error())
		r.markFailed(clue)
		return
	}

	r.result.Processed++
	r.result.Mentions += len(entities)

	if r.setting.Mirror != nil {
		if err := r.setting.Mirror.MirrorClue(r.ctx, clue, entities); err != nil {
			logger.WithError(err).Warnf("mirror clue[%d] fail: %s", clue.ID, err.Error())
		}
	}
}

// markFailed 将线索标记为分析失败；重试中再次失败的线索保持失败状态。
func (r *runner) markFailed(clue *metadata.Clue) {
	clueID := clue.ID
	if clue.ProcessStatus == metadata.ClueStatusFailed {
		r.result.Failed++
		r.result.FailedIDs = append(r.result.FailedIDs, clueID)
		return
	}

	changed, err := metadata.MarkClueStatus(r.db, clueID, metadata.ClueStatusFailed, metadata.ClueStatusPending)
	if err != nil {
		r.setting.Logger.WithError(err).Errorf("mark clue[%d] failed fail: %s", clueID, err.Error())
		return
	}

	if !changed {
		r.result.Skipped++
		return
	}

	r.result.Failed++
	r.result.FailedIDs = append(r.result.FailedIDs, clueID)
}
