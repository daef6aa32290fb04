package metadata

import (
	"time"
)

/*
Clue 记录了一条入库的邮件线索。

	除 ProcessStatus 外的字段都来自上传的表格，缺失的列入库为 NULL；
	ProcessStatus 0=待分析，1=已分析，-1=分析失败，只由抽取流程修改；
	CreatedAt 入库时间；

	Relations 一对多关系，此线索提及的实体；
*/
type Clue struct {
	ID            uint       `gorm:"primaryKey"`
	SourceEmail   *string    `gorm:"type:varchar(150)"`
	BatchNo       *string    `gorm:"type:varchar(100)"`
	SendTime      *time.Time `gorm:"index:idx_clues_send_time"`
	Content       *string    `gorm:"type:text"`
	Subject       *string    `gorm:"type:varchar(255)"`
	Recorder      *string    `gorm:"type:varchar(100)"`
	Remarks       *string    `gorm:"type:text"`
	OriginalFile  *string    `gorm:"type:varchar(255)"`
	ProcessStatus ClueStatus `gorm:"type:smallint;not null;default:0;index:idx_clues_status;comment:Pending=0,Processed=1,Failed=-1"`
	CreatedAt     time.Time
	Org           *string `gorm:"type:varchar(200);index:idx_clues_org"`

	Relations []Relation `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (Clue) TableName() string {
	return "t_clues"
}

/*
Entity 记录了一个去重后的实体，(Name, Type) 唯一。

	Name 实体名，入库前去除首尾空白；
	Type 实体类型，见 EntityType；
*/
type Entity struct {
	ID   uint       `gorm:"primaryKey"`
	Name string     `gorm:"type:varchar(200);not null;uniqueIndex:idx_entities_name_type"`
	Type EntityType `gorm:"type:varchar(50);not null;uniqueIndex:idx_entities_name_type"`

	Relations []Relation `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (Entity) TableName() string {
	return "t_entities"
}

/*
Relation 表示实体在线索中被提及，(ClueID, EntityID) 为联合主键。
*/
type Relation struct {
	ClueID   uint `gorm:"primaryKey;autoIncrement:false"`
	EntityID uint `gorm:"primaryKey;autoIncrement:false;index:idx_relations_entity"`
}

func (Relation) TableName() string {
	return "t_relations"
}
