package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSeparators = []rune{'。', '，', '；', ',', '.'}

func assertSplitterResultValid(t *testing.T, text string, splitIndex, splitCnt []int) {
	require.Equal(t, len(splitIndex), len(splitCnt))
	chars := []rune(text)
	cntToStr := func(beg, end int) string {
		return string(chars[beg:end])
	}

	bounds := append(append([]int{0}, splitIndex...), len(text))
	cnts := append(append([]int{0}, splitCnt...), utf8.RuneCountInString(text))
	for i := 1; i < len(bounds); i++ {
		require.Equal(t, cntToStr(cnts[i-1], cnts[i]), text[bounds[i-1]:bounds[i]])
	}
}

func TestSplitter_SplitWithNoSepText(t *testing.T) {
	s := NewSentenceSplitter(testSeparators, 1, 2)
	text := "abcd一二三四五"
	splitIndex, splitCnt := s.Split(text)

	assertSplitterResultValid(t, text, splitIndex, splitCnt)
	require.Equal(t, []int{2, 4, 6, 8}, splitCnt)
}

func TestSplitter_SplitWithFullSepText(t *testing.T) {
	s := NewSentenceSplitter(testSeparators, 1, 2)
	text := ",,,,。。，，；"
	splitIndex, splitCnt := s.Split(text)

	assertSplitterResultValid(t, text, splitIndex, splitCnt)
	require.Equal(t, []int{2, 4, 6, 8}, splitCnt)
}

func TestSplitter_SplitSepPriority(t *testing.T) {
	s := NewSentenceSplitter(testSeparators, 4, 8)
	text := "。。。。，；,.ooo。o"
	splitIndex, splitCnt := s.Split(text)

	assertSplitterResultValid(t, text, splitIndex, splitCnt)
	require.Equal(t, []int{4, 12}, splitCnt)
}

func TestSplitter_Reusable(t *testing.T) {
	s := NewSentenceSplitter(testSeparators, 1, 2)
	_, first := s.Split("abcd一二三四五")
	_, second := s.Split("abcd一二三四五")
	assert.Equal(t, first, second)
}

func TestSplitter_Segments(t *testing.T) {
	s := NewSentenceSplitter(testSeparators, 2, 6)
	text := "张三在北京，李四在上海。王五在广州工作"
	segments := s.Segments(text)

	b := strings.Builder{}
	for _, seg := range segments {
		assert.LessOrEqual(t, utf8.RuneCountInString(seg.Text), 6)
		assert.Equal(t, seg.Text, text[seg.Offset:seg.Offset+len(seg.Text)])
		b.WriteString(seg.Text)
	}
	assert.Equal(t, text, b.String())
	assert.Equal(t, "张三在北京，", segments[0].Text)

	assert.Nil(t, s.Segments(""))
	assert.Equal(t, []Segment{{Text: "短句", Offset: 0}}, s.Segments("短句"))
}
