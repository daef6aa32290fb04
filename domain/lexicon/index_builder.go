package lexicon

import (
	"context"

	"deeptrace-backend-controller/repository/metadata"
	"deeptrace-backend-controller/utils"
	"gorm.io/gorm"
)

// indexedTypes 只有模型识别出的实体类型进入词表，手机号由正则负责。
var indexedTypes = []metadata.EntityType{
	metadata.EntityTypePerson,
	metadata.EntityTypeOrganization,
	metadata.EntityTypeLocation,
}

type indexBuilder struct {
	// inputs
	ctx context.Context

	// outputs
	entityIndex map[string]metadata.EntityType
}

func (b *indexBuilder) Build(tx *gorm.DB) error {
	b.entityIndex = make(map[string]metadata.EntityType)

	err := b.build(tx)
	if err != nil {
		return utils.WrapError(err, "build fail")
	}

	return nil
}

// build 同名不同类型的实体只保留 id 最小的一个。
func (b *indexBuilder) build(tx *gorm.DB) error {
	var batchData []metadata.Entity

	res := tx.WithContext(b.ctx).
		Where("type IN ?", indexedTypes).
		Order("id").
		FindInBatches(&batchData, 512, func(tx *gorm.DB, batchNum int) error {
			for i := 0; i < len(batchData); i++ {
				name := batchData[i].Name
				if _, ok := b.entityIndex[name]; ok {
					continue
				}
				b.entityIndex[name] = batchData[i].Type
			}

			batchData = nil
			return nil
		})

	return res.Error
}
