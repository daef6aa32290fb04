package extraction

import (
	"context"
	"errors"
	"strings"
	"testing"

	"deeptrace-backend-controller/domain/recognizer"
	"deeptrace-backend-controller/repository/metadata"
	"deeptrace-backend-controller/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRecognizer 按词表返回固定标签，文本包含 fail 时返回错误。
type stubRecognizer struct {
	labels map[string]string
	fail   string
}

func (s *stubRecognizer) Recognize(_ context.Context, text string) ([]recognizer.Span, error) {
	if len(s.fail) != 0 && strings.Contains(text, s.fail) {
		return nil, errors.New("model crashed")
	}

	var ret []recognizer.Span
	for word, label := range s.labels {
		begin := 0
		for {
			index := strings.Index(text[begin:], word)
			if index < 0 {
				break
			}
			start := begin + index
			ret = append(ret, recognizer.Span{Text: word, Label: label, Start: start, End: start + len(word)})
			begin = start + len(word)
		}
	}
	return ret, nil
}

func (s *stubRecognizer) Close() error {
	return nil
}

func TestMatchPhones(t *testing.T) {
	assert.Equal(t, []string{"13912345678"}, MatchPhones("联系电话13912345678"))
	assert.Empty(t, MatchPhones("2313912345678"))
	assert.Empty(t, MatchPhones("139123456780"))
	assert.Empty(t, MatchPhones("12912345678"))
	assert.Equal(t, []string{"13912345678", "18800001111"}, MatchPhones("a13912345678,b18800001111。"))
	assert.Empty(t, MatchPhones(""))
}

func TestExtractEntities_FilterAndDedup(t *testing.T) {
	rec := &stubRecognizer{labels: map[string]string{
		"张三":   "PER",
		"王":    "PERSON",
		"北京":   "LOC",
		"公安局":  "ORGANIZATION",
		"吃饭":   "v",
		" 李四 ": "PERSON",
	}}

	text := "张三和 李四 在北京公安局吃饭，张三电话13912345678，王说13912345678"
	mentions, err := ExtractEntities(context.TODO(), rec, text)
	require.Nil(t, err)

	assert.ElementsMatch(t, []Mention{
		{Name: "张三", Type: metadata.EntityTypePerson},
		{Name: "李四", Type: metadata.EntityTypePerson},
		{Name: "北京", Type: metadata.EntityTypeLocation},
		{Name: "公安局", Type: metadata.EntityTypeOrganization},
		{Name: "13912345678", Type: metadata.EntityTypePhone},
	}, mentions)
}

func TestExtractEntities_RecognizerError(t *testing.T) {
	rec := &stubRecognizer{fail: "boom"}
	_, err := ExtractEntities(context.TODO(), rec, "boom")
	assert.NotNil(t, err)
}

func TestClueText(t *testing.T) {
	clue := metadata.Clue{
		Subject:     utils.StrToPtr("标题"),
		SourceEmail: utils.StrToPtr("a@b.c"),
	}
	assert.Equal(t, "标题  a@b.c", ClueText(&clue))
}
