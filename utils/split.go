package utils

import "unicode/utf8"

/*
SentenceSplitter 用于将长文本分割成若干较短片段，每段的长度（以 rune 计）不超过 maxLen，
并尽量在给定的分隔符之后断开；只有断开后片段长度不小于 minLen 时才采用分隔符位置。

对于一组分隔符，优先按照靠前的分隔符进行分割。SentenceSplitter 不保存状态，可以复用。
*/
type SentenceSplitter struct {
	separators []rune       // 分隔符，按优先级降序排列
	priority   map[rune]int // separators[i] -> i
	maxLen     int
	minLen     int
}

/*
Segment 分割得到的一段文本。

	Offset 该段在原文中的起始下标（以 byte 为单位）；
*/
type Segment struct {
	Text   string
	Offset int
}

func NewSentenceSplitter(separators []rune, minLen, maxLen int) *SentenceSplitter {
	if maxLen <= 0 {
		maxLen = 1
	}
	if minLen > maxLen {
		minLen = maxLen
	}

	priority := make(map[rune]int, len(separators))
	for i, sep := range separators {
		if _, exist := priority[sep]; !exist {
			priority[sep] = i
		}
	}

	return &SentenceSplitter{
		separators: separators,
		priority:   priority,
		maxLen:     maxLen,
		minLen:     minLen,
	}
}

// position 同时记录一个切分点的 byte 下标与 rune 下标。
type position struct {
	index int
	cnt   int
}

/*
Split 返回分割点（不包括 0 和文本末尾）。

	splitIndexOnByte 对应 text[splitIndexOnByte[i] : splitIndexOnByte[i+1]]；
	splitIndexOnRune 对应 []rune(text)[splitIndexOnRune[i] : splitIndexOnRune[i+1]]；
*/
func (s *SentenceSplitter) Split(text string) (splitIndexOnByte, splitIndexOnRune []int) {
	// afterSeparator[i] 为 separators[i] 最近一次出现之后的位置
	afterSeparator := make([]position, len(s.separators))
	for i := range afterSeparator {
		afterSeparator[i] = position{index: -1, cnt: -1}
	}

	last := position{}
	cnt := -1
	for index, ch := range text {
		cnt++

		if cnt >= last.cnt+s.maxLen {
			split := position{index: index, cnt: cnt}
			for _, candidate := range afterSeparator {
				if candidate.cnt > last.cnt && candidate.cnt >= last.cnt+s.minLen {
					split = candidate
					break
				}
			}

			splitIndexOnByte = append(splitIndexOnByte, split.index)
			splitIndexOnRune = append(splitIndexOnRune, split.cnt)
			last = split
		}

		if i, ok := s.priority[ch]; ok {
			afterSeparator[i] = position{index: index + utf8.RuneLen(ch), cnt: cnt + 1}
		}
	}

	return splitIndexOnByte, splitIndexOnRune
}

// Segments 按 Split 的结果切出各段文本及其偏移，空文本返回空切片。
func (s *SentenceSplitter) Segments(text string) []Segment {
	if len(text) == 0 {
		return nil
	}

	splitIndex, _ := s.Split(text)

	ret := make([]Segment, 0, len(splitIndex)+1)
	begin := 0
	for _, end := range splitIndex {
		ret = append(ret, Segment{Text: text[begin:end], Offset: begin})
		begin = end
	}
	ret = append(ret, Segment{Text: text[begin:], Offset: begin})

	return ret
}
