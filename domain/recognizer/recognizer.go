package recognizer

import (
	"context"
	"errors"
	"fmt"
)

var ErrRecognizerUnavailable = errors.New("recognizer is unavailable")

/*
Span 识别出的一个片段。

	Text 片段文本；
	Label 识别器给出的原始标签，标签集合是开放的，由调用方过滤；
	Start、End 以 byte 为单位的下标，对应 text[Start:End]；
*/
type Span struct {
	Text  string
	Label string
	Start int
	End   int
}

// Recognizer 命名实体识别器，将文本映射为带标签的片段列表。
type Recognizer interface {
	Recognize(ctx context.Context, text string) ([]Span, error)
	Close() error
}

const (
	KindJieba = "jieba"
	KindHugot = "hugot"
)

/*
Config 识别器配置。

	Kind 为 jieba（默认）或 hugot；
	JiebaDicts gojieba 的词典路径，为空使用内置词典；
	HugotModel、HugotModelDir、HugotOnnxFile hugot 模型名称、本地目录与 onnx 文件；
	MaxChunkRunes 送入模型的单段最大字符数；
*/
type Config struct {
	Kind          string
	JiebaDicts    []string
	HugotModel    string
	HugotModelDir string
	HugotOnnxFile string
	MaxChunkRunes int
}

func New(config *Config) (Recognizer, error) {
	switch config.Kind {
	case KindJieba, "":
		return NewJieba(config.JiebaDicts...), nil
	case KindHugot:
		return NewHugot(config)
	}
	return nil, fmt.Errorf("unknown recognizer kind [%s]", config.Kind)
}
