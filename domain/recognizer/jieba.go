package recognizer

import (
	"context"
	"strings"
	"sync"

	"github.com/yanyiwu/gojieba"
)

const (
	LabelPerson       = "PERSON"
	LabelOrganization = "ORGANIZATION"
	LabelLocation     = "LOCATION"
)

// Jieba 基于 gojieba 词性标注的识别器：nr 人名，ns 地名，nt 机构团体。
type Jieba struct {
	mu    sync.Mutex
	jieba *gojieba.Jieba
}

func NewJieba(dictPaths ...string) *Jieba {
	return &Jieba{jieba: gojieba.NewJieba(dictPaths...)}
}

// AddWord 向词典追加词语，用于补充领域内的专有名词。
func (j *Jieba) AddWord(word string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.jieba.AddWord(word)
}

func (j *Jieba) Recognize(ctx context.Context, text string) ([]Span, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	j.mu.Lock()
	if j.jieba == nil {
		j.mu.Unlock()
		return nil, ErrRecognizerUnavailable
	}
	tags := j.jieba.Tag(text)
	j.mu.Unlock()

	var ret []Span
	cursor := 0
	for _, tag := range tags {
		word, flag := splitTag(tag)
		if len(word) == 0 {
			continue
		}

		index := strings.Index(text[cursor:], word)
		if index < 0 {
			continue
		}
		begin := cursor + index
		cursor = begin + len(word)

		ret = append(ret, Span{
			Text:  word,
			Label: flagToLabel(flag),
			Start: begin,
			End:   cursor,
		})
	}

	return ret, nil
}

func (j *Jieba) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.jieba != nil {
		j.jieba.Free()
		j.jieba = nil
	}
	return nil
}

// splitTag 拆分 "词/词性"，词本身可能包含 '/'，以最后一个为准。
func splitTag(tag string) (word, flag string) {
	index := strings.LastIndexByte(tag, '/')
	if index < 0 {
		return tag, ""
	}
	return tag[:index], tag[index+1:]
}

func flagToLabel(flag string) string {
	switch {
	case strings.HasPrefix(flag, "nr"):
		return LabelPerson
	case strings.HasPrefix(flag, "ns"):
		return LabelLocation
	case strings.HasPrefix(flag, "nt"):
		return LabelOrganization
	}
	return flag
}
