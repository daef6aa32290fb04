package lexicon

import (
	"context"
	"sync"

	"deeptrace-backend-controller/domain/recognizer"
	"deeptrace-backend-controller/repository/metadata"
	"deeptrace-backend-controller/utils"
	"github.com/yanyiwu/gojieba"
)

var typeToLabel = map[metadata.EntityType]string{
	metadata.EntityTypePerson:       recognizer.LabelPerson,
	metadata.EntityTypeOrganization: recognizer.LabelOrganization,
	metadata.EntityTypeLocation:     recognizer.LabelLocation,
}

/*
Lexicon 在底层识别器之外，按已入库的实体名补充识别结果。

已知实体名被加入 jieba 词典，分词结果中命中词表的词作为实体返回，
使得此前确认过的名字在后续线索中被稳定识别。
*/
type Lexicon struct {
	setting *LexiconSetting
	base    recognizer.Recognizer

	lock        sync.Mutex
	jieba       *gojieba.Jieba
	entityIndex map[string]metadata.EntityType
}

// New base 可以为 nil，此时只返回词表命中的结果。
func New(setting *LexiconSetting, base recognizer.Recognizer) *Lexicon {
	ret := Lexicon{
		setting: setting,
		base:    base,
	}
	ret.reset()
	return &ret
}

func (l *Lexicon) reset() {
	if l.jieba != nil {
		l.jieba.Free()
	}
	l.jieba = gojieba.NewJieba(l.setting.JiebaDicts...)
	l.entityIndex = make(map[string]metadata.EntityType)
}

func (l *Lexicon) applyIndex(entityIndex map[string]metadata.EntityType) int {
	added := 0
	for entity, typ := range entityIndex {
		if _, ok := l.entityIndex[entity]; ok {
			continue
		}

		l.jieba.AddWord(entity)
		l.entityIndex[entity] = typ
		added++
	}
	return added
}

// Refresh 从数据库加载新增的实体名，已加载的名字不会重复加入词典。
func (l *Lexicon) Refresh(ctx context.Context) error {
	builder := indexBuilder{
		ctx: ctx,
	}

	err := l.setting.GetMetadataDatabase().WithContext(ctx).Transaction(builder.Build)
	if err != nil {
		return utils.WrapError(err, "build index fail")
	}

	l.lock.Lock()
	added := l.applyIndex(builder.entityIndex)
	total := len(l.entityIndex)
	l.lock.Unlock()

	l.setting.Logger.Infof("lexicon refreshed: %d added, %d total", added, total)
	return nil
}

func (l *Lexicon) Size() int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return len(l.entityIndex)
}

func (l *Lexicon) wordsToSpans(words []gojieba.Word) []recognizer.Span {
	var ret []recognizer.Span

	for _, word := range words {
		typ, ok := l.entityIndex[word.Str]
		if !ok {
			continue
		}

		ret = append(ret, recognizer.Span{
			Text:  word.Str,
			Label: typeToLabel[typ],
			Start: word.Start,
			End:   word.End,
		})
	}

	return ret
}

func (l *Lexicon) Recognize(ctx context.Context, text string) ([]recognizer.Span, error) {
	var ret []recognizer.Span
	if l.base != nil {
		spans, err := l.base.Recognize(ctx, text)
		if err != nil {
			return nil, err
		}
		ret = spans
	}

	l.lock.Lock()
	defer l.lock.Unlock()

	if l.jieba == nil {
		return nil, recognizer.ErrRecognizerUnavailable
	}

	words := l.jieba.Tokenize(text, gojieba.DefaultMode, true)
	return append(ret, l.wordsToSpans(words)...), nil
}

func (l *Lexicon) Close() error {
	l.lock.Lock()
	if l.jieba != nil {
		l.jieba.Free()
		l.jieba = nil
	}
	l.lock.Unlock()

	if l.base != nil {
		return l.base.Close()
	}
	return nil
}
