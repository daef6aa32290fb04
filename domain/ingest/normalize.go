package ingest

import (
	"strconv"
	"strings"
	"time"

	"deeptrace-backend-controller/repository/metadata"
	"github.com/xuri/excelize/v2"
)

type field int

const (
	fieldNone field = iota
	fieldSourceEmail
	fieldBatchNo
	fieldSendTime
	fieldContent
	fieldSubject
	fieldRecorder
	fieldRemarks
	fieldOriginalFile
	fieldOrg
)

// headerSynonyms 表头到字段的映射，精确匹配、区分大小写。
var headerSynonyms = map[string]field{
	"来源邮箱": fieldSourceEmail,
	"发件人":  fieldSourceEmail,
	"邮箱":   fieldSourceEmail,
	"批次":   fieldBatchNo,
	"收发日期": fieldSendTime,
	"时间":   fieldSendTime,
	"邮件内容": fieldContent,
	"正文":   fieldContent,
	"邮件名":  fieldSubject,
	"标题":   fieldSubject,
	"主题":   fieldSubject,
	"记录人":  fieldRecorder,
	"备注":   fieldRemarks,
	"原件名":  fieldOriginalFile,
	"机构":   fieldOrg,

	"source_email":  fieldSourceEmail,
	"batch_no":      fieldBatchNo,
	"send_time":     fieldSendTime,
	"content":       fieldContent,
	"subject":       fieldSubject,
	"recorder":      fieldRecorder,
	"remarks":       fieldRemarks,
	"original_file": fieldOriginalFile,
	"org":           fieldOrg,
}

func mapHeader(header []string) []field {
	ret := make([]field, len(header))
	for i, name := range header {
		ret[i] = headerSynonyms[name]
	}
	return ret
}

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/1/2 15:04:05",
	"2006/1/2 15:04",
	"2006/1/2",
}

// maxExcelSerial 对应 9999-12-31。
const maxExcelSerial = 2958465

/*
parseSendTime 解析发送时间。

	不带时区的时间按 loc 解释；
	RFC3339 使用自带的时区；
	纯数字按 Excel 日期序列号解析，同样视为 loc 下的本地时间；
*/
func parseSendTime(value string, loc *time.Location) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, true
		}
	}

	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, true
	}

	serial, err := strconv.ParseFloat(value, 64)
	if err != nil || serial <= 0 || serial > maxExcelSerial {
		return time.Time{}, false
	}

	wall, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, false
	}

	return time.Date(wall.Year(), wall.Month(), wall.Day(),
		wall.Hour(), wall.Minute(), wall.Second(), 0, loc), true
}

/*
rowToClue 把一行数据转换为线索。

	空单元格视为缺失，同一字段出现在多列时取第一个非空值；
	发送时间缺失或无法解析时使用 now；
	整行为空时 ok 为 false；
*/
func rowToClue(fields []field, row []string, loc *time.Location, now time.Time) (clue metadata.Clue, ok bool) {
	values := make(map[field]string)
	empty := true
	for i, cell := range row {
		cell = strings.TrimSpace(cell)
		if len(cell) == 0 {
			continue
		}
		empty = false

		if i >= len(fields) || fields[i] == fieldNone {
			continue
		}
		if _, exist := values[fields[i]]; !exist {
			values[fields[i]] = cell
		}
	}

	if empty {
		return clue, false
	}

	ptr := func(f field) *string {
		v, exist := values[f]
		if !exist {
			return nil
		}
		return &v
	}

	clue = metadata.Clue{
		SourceEmail:  ptr(fieldSourceEmail),
		BatchNo:      ptr(fieldBatchNo),
		Content:      ptr(fieldContent),
		Subject:      ptr(fieldSubject),
		Recorder:     ptr(fieldRecorder),
		Remarks:      ptr(fieldRemarks),
		OriginalFile: ptr(fieldOriginalFile),
		Org:          ptr(fieldOrg),
	}

	sendTime := now
	if raw, exist := values[fieldSendTime]; exist {
		if parsed, parsedOK := parseSendTime(raw, loc); parsedOK {
			sendTime = parsed
		}
	}
	sendTime = sendTime.UTC()
	clue.SendTime = &sendTime

	return clue, true
}
