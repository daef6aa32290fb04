package metadata

// ClueStatus 线索的分析状态，只会由抽取流程修改。
type ClueStatus int8

const (
	ClueStatusFailed    ClueStatus = -1
	ClueStatusPending   ClueStatus = 0
	ClueStatusProcessed ClueStatus = 1
)

func (s ClueStatus) String() string {
	switch s {
	case ClueStatusPending:
		return "pending"
	case ClueStatusProcessed:
		return "processed"
	case ClueStatusFailed:
		return "failed"
	}
	return "unknown"
}

// EntityType 实体类型，是封闭集合。
type EntityType string

const (
	EntityTypePerson       EntityType = "person"
	EntityTypeOrganization EntityType = "organization"
	EntityTypeLocation     EntityType = "location"
	EntityTypePhone        EntityType = "phone"
)

var entityTypeDisplayName = map[EntityType]string{
	EntityTypePerson:       "人名",
	EntityTypeOrganization: "机构",
	EntityTypeLocation:     "地名",
	EntityTypePhone:        "手机号",
}

func (t EntityType) Valid() bool {
	_, ok := entityTypeDisplayName[t]
	return ok
}

// DisplayName 面板展示用的中文名称。
func (t EntityType) DisplayName() string {
	if name, ok := entityTypeDisplayName[t]; ok {
		return name
	}
	return string(t)
}
