package recognizer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJieba_Recognize(t *testing.T) {
	rec := NewJieba()
	defer rec.Close()

	text := "我来到北京清华大学"
	spans, err := rec.Recognize(context.TODO(), text)
	require.Nil(t, err)
	require.NotEmpty(t, spans)

	found := false
	for i, span := range spans {
		t.Logf("[%d]%s/%s", i, span.Text, span.Label)
		assert.Equal(t, span.Text, text[span.Start:span.End])
		if span.Text == "北京" {
			found = true
			assert.Equal(t, LabelLocation, span.Label)
		}
	}
	assert.True(t, found)
}

func TestJieba_RecognizeAfterClose(t *testing.T) {
	rec := NewJieba()
	require.Nil(t, rec.Close())
	require.Nil(t, rec.Close())

	_, err := rec.Recognize(context.TODO(), "北京")
	assert.ErrorIs(t, err, ErrRecognizerUnavailable)
}

func TestJieba_CancelledContext(t *testing.T) {
	rec := NewJieba()
	defer rec.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := rec.Recognize(ctx, "北京")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSplitTag(t *testing.T) {
	word, flag := splitTag("北京/ns")
	assert.Equal(t, "北京", word)
	assert.Equal(t, "ns", flag)

	word, flag = splitTag("a/b/x")
	assert.Equal(t, "a/b", word)
	assert.Equal(t, "x", flag)

	word, flag = splitTag("孤词")
	assert.Equal(t, "孤词", word)
	assert.Equal(t, "", flag)
}

func TestFlagToLabel(t *testing.T) {
	assert.Equal(t, LabelPerson, flagToLabel("nr"))
	assert.Equal(t, LabelPerson, flagToLabel("nrfg"))
	assert.Equal(t, LabelLocation, flagToLabel("ns"))
	assert.Equal(t, LabelOrganization, flagToLabel("nt"))
	assert.Equal(t, "v", flagToLabel("v"))
}

func TestNormalizeLabel(t *testing.T) {
	assert.Equal(t, "PER", normalizeLabel("B-PER"))
	assert.Equal(t, "LOC", normalizeLabel("I-LOC"))
	assert.Equal(t, "ORG", normalizeLabel("ORG"))
	assert.Equal(t, "B", normalizeLabel("B"))
}

func TestNew_UnknownKind(t *testing.T) {
	_, err := New(&Config{Kind: "regex"})
	assert.NotNil(t, err)

	rec, err := New(&Config{})
	require.Nil(t, err)
	assert.IsType(t, &Jieba{}, rec)
	assert.Nil(t, rec.Close())
}
