package extraction

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"deeptrace-backend-controller/domain/recognizer"
	"deeptrace-backend-controller/repository/metadata"
	"deeptrace-backend-controller/utils"
)

// Mention 一条线索中去重后的实体提及。
type Mention struct {
	Name string              `json:"name"`
	Type metadata.EntityType `json:"type"`
}

// labelToType 识别器原始标签到实体类型的映射，不在表中的标签被丢弃。
var labelToType = map[string]metadata.EntityType{
	"PERSON":       metadata.EntityTypePerson,
	"PER":          metadata.EntityTypePerson,
	"ORG":          metadata.EntityTypeOrganization,
	"ORGANIZATION": metadata.EntityTypeOrganization,
	"LOC":          metadata.EntityTypeLocation,
	"LOCATION":     metadata.EntityTypeLocation,
}

var (
	digitRun     = regexp.MustCompile(`[0-9]+`)
	mobileNumber = regexp.MustCompile(`^1[3-9][0-9]{9}$`)
)

/*
MatchPhones 提取 11 位手机号：以 1 开头、第二位为 3-9，且前后都不紧邻其它数字。

等价于只保留长度恰好为 11 的完整数字串，因此更长数字串中的子串不会被匹配。
*/
func MatchPhones(text string) []string {
	var ret []string
	for _, run := range digitRun.FindAllString(text, -1) {
		if mobileNumber.MatchString(run) {
			ret = append(ret, run)
		}
	}
	return ret
}

// ClueText 拼接标题、正文与发件人作为识别的输入，NULL 视为空串。
func ClueText(clue *metadata.Clue) string {
	return utils.PtrToStr(clue.Subject) + " " + utils.PtrToStr(clue.Content) + " " + utils.PtrToStr(clue.SourceEmail)
}

type mentionSet struct {
	seen map[Mention]struct{}
	list []Mention
}

func (s *mentionSet) Add(name string, typ metadata.EntityType) {
	m := Mention{Name: name, Type: typ}
	if _, ok := s.seen[m]; ok {
		return
	}
	s.seen[m] = struct{}{}
	s.list = append(s.list, m)
}

/*
ExtractEntities 从文本中抽取实体提及：

	识别器的结果只保留人名、机构、地名三类标签，去掉首尾空白后长度不超过 1 个字符的片段被丢弃；
	另外用 MatchPhones 抽取手机号；
	最终按 (名称, 类型) 去重，保持首次出现的顺序。
*/
func ExtractEntities(ctx context.Context, rec recognizer.Recognizer, text string) ([]Mention, error) {
	spans, err := rec.Recognize(ctx, text)
	if err != nil {
		return nil, utils.WrapError(err, "recognize text fail")
	}

	set := mentionSet{seen: make(map[Mention]struct{})}
	for _, span := range spans {
		typ, ok := labelToType[span.Label]
		if !ok {
			continue
		}

		name := strings.TrimSpace(span.Text)
		if utf8.RuneCountInString(name) <= 1 {
			continue
		}

		set.Add(name, typ)
	}

	for _, phone := range MatchPhones(text) {
		set.Add(phone, metadata.EntityTypePhone)
	}

	return set.list, nil
}
