package recognizer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"deeptrace-backend-controller/logging"
	"deeptrace-backend-controller/utils"
	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
)

var chunkSeparators = []rune{'。', '！', '？', '\n', '；', ';', '，', ',', ' '}

// Hugot 基于 hugot 词元分类（NER）模型的识别器。
type Hugot struct {
	mu       sync.Mutex
	session  *hugot.Session
	pipeline *pipelines.TokenClassificationPipeline
	splitter *utils.SentenceSplitter
}

// prepareModel 模型不存在时下载到 modelDir，返回模型目录。
func prepareModel(modelName, modelDir, onnxFile string) (string, error) {
	modelPath := filepath.Join(modelDir, strings.ReplaceAll(modelName, "/", "_"))
	if _, err := os.Stat(modelPath); err == nil {
		return modelPath, nil
	}

	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		return "", utils.WrapErrorf(err, "create model dir [%s] fail", modelDir)
	}

	options := hugot.NewDownloadOptions()
	if len(onnxFile) != 0 {
		options.OnnxFilePath = onnxFile
	}

	logging.Default().Infof("downloading NER model [%s] to [%s]", modelName, modelDir)
	downloaded, err := hugot.DownloadModel(modelName, modelDir, options)
	if err != nil {
		return "", utils.WrapErrorf(err, "download model [%s] fail", modelName)
	}

	return downloaded, nil
}

func NewHugot(config *Config) (*Hugot, error) {
	modelPath, err := prepareModel(config.HugotModel, config.HugotModelDir, config.HugotOnnxFile)
	if err != nil {
		return nil, utils.WrapError(err, "prepare model fail")
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, utils.WrapError(err, "create hugot session fail")
	}

	pipeline, err := hugot.NewPipeline(session, hugot.TokenClassificationConfig{
		ModelPath: modelPath,
		Name:      "deeptrace-ner",
		Options: []hugot.TokenClassificationOption{
			pipelines.WithSimpleAggregation(),
			pipelines.WithIgnoreLabels([]string{"O"}),
		},
	})
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("create NER pipeline fail: %w (destroy session: %v)", err, destroyErr)
		}
		return nil, utils.WrapError(err, "create NER pipeline fail")
	}

	maxChunk := config.MaxChunkRunes
	if maxChunk <= 0 {
		maxChunk = 256
	}

	return &Hugot{
		session:  session,
		pipeline: pipeline,
		splitter: utils.NewSentenceSplitter(chunkSeparators, maxChunk/4, maxChunk),
	}, nil
}

func (h *Hugot) Recognize(ctx context.Context, text string) ([]Span, error) {
	segments := h.splitter.Segments(text)
	if len(segments) == 0 {
		return nil, nil
	}

	inputs := make([]string, len(segments))
	for i, seg := range segments {
		inputs[i] = seg.Text
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	if h.pipeline == nil {
		h.mu.Unlock()
		return nil, ErrRecognizerUnavailable
	}
	output, err := h.pipeline.RunPipeline(inputs)
	h.mu.Unlock()
	if err != nil {
		return nil, utils.WrapError(err, "run NER pipeline fail")
	}

	var ret []Span
	for i, entities := range output.Entities {
		offset := segments[i].Offset
		for _, entity := range entities {
			ret = append(ret, Span{
				Text:  strings.TrimSpace(entity.Word),
				Label: normalizeLabel(entity.Entity),
				Start: offset + int(entity.Start),
				End:   offset + int(entity.End),
			})
		}
	}

	return ret, nil
}

func (h *Hugot) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.pipeline = nil
	if h.session == nil {
		return nil
	}
	err := h.session.Destroy()
	h.session = nil
	return err
}

// normalizeLabel 去掉 BIO 标注的 B-、I- 前缀。
func normalizeLabel(label string) string {
	if strings.HasPrefix(label, "B-") || strings.HasPrefix(label, "I-") {
		return label[2:]
	}
	return label
}
