package metadata

import (
	"strings"

	"deeptrace-backend-controller/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

/*
UpsertEntity 按 (name, type) 插入实体，已存在时不做修改，返回库中的实体。

依靠唯一索引 idx_entities_name_type 去重：插入冲突时什么也不做，然后按唯一键读回，
因此对同一 (name, type) 的重复调用总是得到同一条记录。
*/
func UpsertEntity(tx *gorm.DB, name string, typ EntityType) (*Entity, error) {
	name = strings.TrimSpace(name)

	entity := Entity{Name: name, Type: typ}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}, {Name: "type"}},
		DoNothing: true,
	}).Create(&entity).Error
	if err != nil {
		return nil, utils.WrapErrorf(err, "insert entity (%s, %s) fail", name, typ)
	}

	var stored Entity
	err = tx.Where("name = ? AND type = ?", name, typ).Take(&stored).Error
	if err != nil {
		return nil, utils.WrapErrorf(err, "select entity (%s, %s) fail", name, typ)
	}

	return &stored, nil
}

// LinkClueEntity 记录实体在线索中出现，重复插入不产生新记录。
func LinkClueEntity(tx *gorm.DB, clueID, entityID uint) error {
	err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&Relation{ClueID: clueID, EntityID: entityID}).Error
	if err != nil {
		return utils.WrapErrorf(err, "insert relation (clue=%d, entity=%d) fail", clueID, entityID)
	}

	return nil
}

func TakeEntity(db *gorm.DB, entityID uint) (*Entity, error) {
	var entity Entity
	if err := db.Take(&entity, entityID).Error; err != nil {
		return nil, utils.WrapErrorf(err, "select entity[%d] fail", entityID)
	}
	return &entity, nil
}

// EntitiesOfClues 返回每条线索关联的实体，按实体 id 升序。
func EntitiesOfClues(db *gorm.DB, clueIDs []uint) (map[uint][]Entity, error) {
	ret := make(map[uint][]Entity)
	if len(clueIDs) == 0 {
		return ret, nil
	}

	type row struct {
		ClueID uint
		Entity
	}

	var rows []row
	err := db.Table("t_relations AS r").
		Select("r.clue_id, e.id, e.name, e.type").
		Joins("JOIN t_entities e ON r.entity_id = e.id").
		Where("r.clue_id IN ?", clueIDs).
		Order("r.clue_id").
		Order("e.id").
		Scan(&rows).Error
	if err != nil {
		return nil, utils.WrapError(err, "select entities of clues fail")
	}

	for _, r := range rows {
		ret[r.ClueID] = append(ret[r.ClueID], r.Entity)
	}
	return ret, nil
}
