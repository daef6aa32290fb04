package analytics

import (
	"sort"
	"time"

	"deeptrace-backend-controller/repository/metadata"
	"deeptrace-backend-controller/utils"
)

const (
	DefaultTopSenders  = 10
	DefaultGraphClues  = 30
	graphLabelMaxRunes = 6
	senderMaxRunes     = 15
)

// Overview 看板顶部的核心指标。
type Overview struct {
	ClueCount   int        `json:"clue_count"`
	EntityCount int        `json:"entity_count"`
	Earliest    *time.Time `json:"earliest"`
	Latest      *time.Time `json:"latest"`
	TopSender   string     `json:"top_sender"`
}

type SenderCount struct {
	Sender string `json:"sender"`
	Count  int    `json:"count"`
}

type TrendPoint struct {
	Day   string `json:"day"`
	Org   string `json:"org"`
	Count int    `json:"count"`
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + ".."
}

// countSenders 按出现次数降序统计发件人，次数相同时先出现的在前。
func countSenders(bundle *Bundle) []SenderCount {
	index := make(map[string]int)
	ret := make([]SenderCount, 0)
	for _, clue := range bundle.Clues {
		if clue.SourceEmail == nil || len(*clue.SourceEmail) == 0 {
			continue
		}
		sender := *clue.SourceEmail
		i, ok := index[sender]
		if !ok {
			i = len(ret)
			index[sender] = i
			ret = append(ret, SenderCount{Sender: sender})
		}
		ret[i].Count++
	}

	sort.SliceStable(ret, func(i, j int) bool {
		return ret[i].Count > ret[j].Count
	})
	return ret
}

func BuildOverview(bundle *Bundle) *Overview {
	ret := Overview{
		ClueCount:   len(bundle.Clues),
		EntityCount: len(bundle.Entities),
		TopSender:   "N/A",
	}

	for _, clue := range bundle.Clues {
		if clue.SendTime == nil {
			continue
		}
		t := *clue.SendTime
		if ret.Earliest == nil || t.Before(*ret.Earliest) {
			ret.Earliest = &t
		}
		if ret.Latest == nil || t.After(*ret.Latest) {
			ret.Latest = &t
		}
	}

	if senders := countSenders(bundle); len(senders) != 0 {
		ret.TopSender = truncateRunes(senders[0].Sender, senderMaxRunes)
	}

	return &ret
}

func TopSenders(bundle *Bundle, n int) []SenderCount {
	ret := countSenders(bundle)
	if len(ret) > n {
		ret = ret[:n]
	}
	return ret
}

// DailyTrend 按 (日期, 机构) 统计线索数量，按日期、机构升序。
func DailyTrend(bundle *Bundle, loc *time.Location) []TrendPoint {
	type key struct {
		day string
		org string
	}

	counts := make(map[key]int)
	for _, clue := range bundle.Clues {
		if clue.SendTime == nil {
			continue
		}
		counts[key{day: clue.SendTime.In(loc).Format(DateLayout), org: utils.PtrToStr(clue.Org)}]++
	}

	ret := make([]TrendPoint, 0, len(counts))
	for k, count := range counts {
		ret = append(ret, TrendPoint{Day: k.day, Org: k.org, Count: count})
	}

	sort.Slice(ret, func(i, j int) bool {
		if ret[i].Day != ret[j].Day {
			return ret[i].Day < ret[j].Day
		}
		return ret[i].Org < ret[j].Org
	})
	return ret
}

type GraphNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Title string `json:"title,omitempty"`
	Size  int    `json:"size"`
	Color string `json:"color"`
	Shape string `json:"shape"`
}

type GraphEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Color  string `json:"color"`
}

type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

const (
	clueColor  = "#3B82F6"
	edgeColor  = "#E5E7EB"
	otherColor = "#8B5CF6"
)

var entityColors = map[metadata.EntityType]string{
	metadata.EntityTypePerson:   "#F59E0B",
	metadata.EntityTypeLocation: "#10B981",
}

/*
BuildGraph 生成关联图：最新的 maxClues 条线索为方形节点，与它们相连的实体为圆点。

不属于这些线索的边被丢弃，每个节点只出现一次。
*/
func BuildGraph(bundle *Bundle, maxClues int) *Graph {
	ret := Graph{
		Nodes: make([]GraphNode, 0),
		Edges: make([]GraphEdge, 0),
	}
	exist := make(map[string]struct{})

	clues := bundle.Clues
	if len(clues) > maxClues {
		clues = clues[:maxClues]
	}

	for _, clue := range clues {
		id := ClueNode(clue.ID).String()
		if _, ok := exist[id]; ok {
			continue
		}

		label := "无题"
		if subject := utils.PtrToStr(clue.Subject); len(subject) != 0 {
			label = truncateRunes(subject, graphLabelMaxRunes)
		}

		ret.Nodes = append(ret.Nodes, GraphNode{
			ID:    id,
			Label: label,
			Title: utils.PtrToStr(clue.Subject),
			Size:  25,
			Color: clueColor,
			Shape: "square",
		})
		exist[id] = struct{}{}
	}

	for _, rel := range bundle.Relations {
		source := ClueNode(rel.ClueID).String()
		if _, ok := exist[source]; !ok {
			continue
		}

		target := EntityNode(rel.EntityID).String()
		if _, ok := exist[target]; !ok {
			color, ok := entityColors[rel.Type]
			if !ok {
				color = otherColor
			}
			ret.Nodes = append(ret.Nodes, GraphNode{
				ID:    target,
				Label: rel.Name,
				Size:  15,
				Color: color,
				Shape: "dot",
			})
			exist[target] = struct{}{}
		}

		ret.Edges = append(ret.Edges, GraphEdge{Source: source, Target: target, Color: edgeColor})
	}

	return &ret
}
