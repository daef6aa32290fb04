package analytics

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"deeptrace-backend-controller/repository/metadata"
	"deeptrace-backend-controller/utils"
	"gorm.io/gorm"
)

var (
	ErrMalformedNodeID = errors.New("malformed node id")
	ErrNodeNotFound    = errors.New("node not found")
)

type NodeKind int

const (
	NodeClue NodeKind = iota + 1
	NodeEntity
)

const (
	clueNodePrefix   = "MAIL_"
	entityNodePrefix = "ENT_"
)

func (k NodeKind) String() string {
	switch k {
	case NodeClue:
		return "mail"
	case NodeEntity:
		return "entity"
	default:
		return "unknown"
	}
}

// NodeRef 图中的一个节点：线索 MAIL_<id> 或实体 ENT_<id>。
type NodeRef struct {
	Kind NodeKind
	ID   uint
}

func ClueNode(id uint) NodeRef {
	return NodeRef{Kind: NodeClue, ID: id}
}

func EntityNode(id uint) NodeRef {
	return NodeRef{Kind: NodeEntity, ID: id}
}

func (r NodeRef) String() string {
	id := strconv.FormatUint(uint64(r.ID), 10)
	switch r.Kind {
	case NodeClue:
		return clueNodePrefix + id
	case NodeEntity:
		return entityNodePrefix + id
	default:
		return ""
	}
}

func ParseNodeRef(s string) (NodeRef, error) {
	var kind NodeKind
	var rest string
	switch {
	case strings.HasPrefix(s, clueNodePrefix):
		kind, rest = NodeClue, s[len(clueNodePrefix):]
	case strings.HasPrefix(s, entityNodePrefix):
		kind, rest = NodeEntity, s[len(entityNodePrefix):]
	default:
		return NodeRef{}, utils.WrapErrorf(ErrMalformedNodeID, "unknown prefix of [%s]", s)
	}

	// ParseUint 也接受 "+1"，这里只允许纯数字
	if len(rest) == 0 || strings.TrimLeft(rest, "0123456789") != "" {
		return NodeRef{}, utils.WrapErrorf(ErrMalformedNodeID, "bad id of [%s]", s)
	}

	id, err := strconv.ParseUint(rest, 10, 0)
	if err != nil {
		return NodeRef{}, utils.WrapErrorf(ErrMalformedNodeID, "parse id of [%s] fail: %s", s, err)
	}

	return NodeRef{Kind: kind, ID: uint(id)}, nil
}

type MetaItem struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// NodeDetail 详情面板展示的内容，实体没有 Body。
type NodeDetail struct {
	ID    string     `json:"id"`
	Kind  string     `json:"kind"`
	Title string     `json:"title"`
	Meta  []MetaItem `json:"meta"`
	Body  *string    `json:"body"`
}

const detailTimeLayout = "2006-01-02 15:04:05"

func detail(setting *Setting, ctx context.Context, ref NodeRef) (*NodeDetail, error) {
	db := setting.GetMetadataDatabase().WithContext(ctx)

	switch ref.Kind {
	case NodeClue:
		clue, err := metadata.TakeClue(db, ref.ID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.WrapErrorf(ErrNodeNotFound, "clue [%d]", ref.ID)
		}
		if err != nil {
			return nil, err
		}

		sendTime := ""
		if clue.SendTime != nil {
			sendTime = clue.SendTime.In(setting.Location).Format(detailTimeLayout)
		}

		return &NodeDetail{
			ID:    ref.String(),
			Kind:  ref.Kind.String(),
			Title: utils.PtrToStr(clue.Subject),
			Meta: []MetaItem{
				{Label: "时间", Value: sendTime},
				{Label: "机构", Value: utils.PtrToStr(clue.Org)},
				{Label: "发件人", Value: utils.PtrToStr(clue.SourceEmail)},
			},
			Body: clue.Content,
		}, nil

	case NodeEntity:
		entity, err := metadata.TakeEntity(db, ref.ID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.WrapErrorf(ErrNodeNotFound, "entity [%d]", ref.ID)
		}
		if err != nil {
			return nil, err
		}

		return &NodeDetail{
			ID:    ref.String(),
			Kind:  ref.Kind.String(),
			Title: entity.Name,
			Meta: []MetaItem{
				{Label: "类型", Value: entity.Type.DisplayName()},
			},
		}, nil

	default:
		return nil, utils.WrapErrorf(ErrMalformedNodeID, "unknown node kind %d", ref.Kind)
	}
}
