package metadata

import (
	"deeptrace-backend-controller/utils"
	"gorm.io/gorm"
)

// CreateClues 批量插入线索，插入后线索状态均为待分析。
func CreateClues(tx *gorm.DB, clues []Clue) error {
	if len(clues) == 0 {
		return nil
	}

	for i := range clues {
		clues[i].ProcessStatus = ClueStatusPending
	}

	if err := tx.CreateInBatches(&clues, 128).Error; err != nil {
		return utils.WrapErrorf(err, "insert %d clues fail", len(clues))
	}

	return nil
}

// ListCluesByStatus 按 id 升序返回指定状态的线索，包含抽取与图同步所需的字段。
func ListCluesByStatus(db *gorm.DB, statuses ...ClueStatus) ([]Clue, error) {
	var clues []Clue
	err := db.Model(&Clue{}).
		Select("id", "subject", "content", "org", "send_time", "source_email", "process_status").
		Where("process_status IN ?", statuses).
		Order("id").
		Find(&clues).Error
	if err != nil {
		return nil, utils.WrapErrorf(err, "select clues with status %v fail", statuses)
	}

	return clues, nil
}

// CountCluesByStatus 统计各状态的线索数量，没有线索的状态计为 0。
func CountCluesByStatus(db *gorm.DB) (map[ClueStatus]int64, error) {
	type row struct {
		ProcessStatus ClueStatus
		Count         int64
	}

	var rows []row
	err := db.Model(&Clue{}).
		Select("process_status, COUNT(*) AS count").
		Group("process_status").
		Scan(&rows).Error
	if err != nil {
		return nil, utils.WrapError(err, "count clues by status fail")
	}

	ret := map[ClueStatus]int64{
		ClueStatusPending:   0,
		ClueStatusProcessed: 0,
		ClueStatusFailed:    0,
	}
	for _, r := range rows {
		ret[r.ProcessStatus] = r.Count
	}

	return ret, nil
}

/*
MarkClueStatus 将线索状态改为 to，仅当其当前状态属于 from 时生效。

返回值 changed 表示是否发生了状态迁移；已处于终态的线索不会被改回。
*/
func MarkClueStatus(tx *gorm.DB, clueID uint, to ClueStatus, from ...ClueStatus) (changed bool, err error) {
	res := tx.Model(&Clue{}).
		Where("id = ? AND process_status IN ?", clueID, from).
		Update("process_status", to)
	if res.Error != nil {
		return false, utils.WrapErrorf(res.Error, "update clue[%d] status to %s fail", clueID, to)
	}

	return res.RowsAffected == 1, nil
}

func TakeClue(db *gorm.DB, clueID uint) (*Clue, error) {
	var clue Clue
	if err := db.Take(&clue, clueID).Error; err != nil {
		return nil, utils.WrapErrorf(err, "select clue[%d] fail", clueID)
	}
	return &clue, nil
}
