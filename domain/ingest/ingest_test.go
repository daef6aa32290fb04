package ingest

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"deeptrace-backend-controller/logging"
	"deeptrace-backend-controller/repository/metadata"
	"deeptrace-backend-controller/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

var shanghai = time.FixedZone("CST", 8*3600)

func newTestSetting(t *testing.T) (*Setting, *gorm.DB, *int) {
	logging.SetDefaultConfig(logging.GenerateTestConfig(t))

	database, err := metadata.CreateDatabase(metadata.GenerateSQLiteTestConfig(t))
	require.Nil(t, err)

	mutations := 0
	return &Setting{
		GetMetadataDatabase: func() *gorm.DB {
			return database
		},
		Location:   shanghai,
		Logger:     logging.NewLogger(),
		OnMutation: func() { mutations++ },
	}, database, &mutations
}

func listClues(t *testing.T, database *gorm.DB) []metadata.Clue {
	var clues []metadata.Clue
	require.Nil(t, database.Order("id").Find(&clues).Error)
	return clues
}

func TestIngest_CSVHeaderSynonyms(t *testing.T) {
	setting, database, mutations := newTestSetting(t)

	data := "\xEF\xBB\xBF发件人,批次,正文,无关列\n" +
		"a@x.com,B1,第一封,zzz\n" +
		"b@x.com,B2,第二封,\n"

	count, err := ingest(setting, context.TODO(), "upload.CSV", strings.NewReader(data))
	require.Nil(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 1, *mutations)

	clues := listClues(t, database)
	require.Len(t, clues, 2)
	assert.Equal(t, "a@x.com", utils.PtrToStr(clues[0].SourceEmail))
	assert.Equal(t, "B1", utils.PtrToStr(clues[0].BatchNo))
	assert.Equal(t, "第一封", utils.PtrToStr(clues[0].Content))
	assert.Equal(t, "b@x.com", utils.PtrToStr(clues[1].SourceEmail))
	assert.Equal(t, "B2", utils.PtrToStr(clues[1].BatchNo))
	assert.Equal(t, "第二封", utils.PtrToStr(clues[1].Content))

	for _, clue := range clues {
		assert.Nil(t, clue.Subject)
		assert.Nil(t, clue.Org)
		assert.Equal(t, metadata.ClueStatusPending, clue.ProcessStatus)
		// 缺失时间时使用当前时间
		require.NotNil(t, clue.SendTime)
		assert.WithinDuration(t, time.Now(), *clue.SendTime, time.Minute)
	}
}

func TestIngest_XLSX(t *testing.T) {
	setting, database, _ := newTestSetting(t)

	file := excelize.NewFile()
	defer file.Close()
	sheet := file.GetSheetName(0)
	require.Nil(t, file.SetSheetRow(sheet, "A1", &[]any{"标题", "收发日期", "机构", "主题", "邮件内容"}))
	require.Nil(t, file.SetSheetRow(sheet, "A2", &[]any{"会议通知", "2024-05-01 10:30:00", "甲单位", "", "联系13912345678"}))
	require.Nil(t, file.SetSheetRow(sheet, "A3", &[]any{"", "", "", "", ""}))
	require.Nil(t, file.SetSheetRow(sheet, "A4", &[]any{"", 45413.5, "乙单位", "备用标题", "正文"}))

	var buf bytes.Buffer
	_, err := file.WriteTo(&buf)
	require.Nil(t, err)

	count, err := ingest(setting, context.TODO(), "clues.xlsx", &buf)
	require.Nil(t, err)
	assert.Equal(t, 2, count)

	clues := listClues(t, database)
	require.Len(t, clues, 2)

	assert.Equal(t, "会议通知", utils.PtrToStr(clues[0].Subject))
	assert.Equal(t, "甲单位", utils.PtrToStr(clues[0].Org))
	assert.True(t, time.Date(2024, 5, 1, 2, 30, 0, 0, time.UTC).Equal(*clues[0].SendTime))

	// 第一列为空时取同一字段的下一个非空列
	assert.Equal(t, "备用标题", utils.PtrToStr(clues[1].Subject))
	assert.True(t, time.Date(2024, 5, 1, 4, 0, 0, 0, time.UTC).Equal(*clues[1].SendTime))
}

func TestIngest_Errors(t *testing.T) {
	setting, database, mutations := newTestSetting(t)

	_, err := ingest(setting, context.TODO(), "clues.txt", strings.NewReader("a,b"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = ingest(setting, context.TODO(), "clues.csv", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyUpload)

	count, err := ingest(setting, context.TODO(), "clues.csv", strings.NewReader("正文\n\n,\n"))
	require.Nil(t, err)
	assert.Zero(t, count)
	assert.Zero(t, *mutations)

	// 存储不可用时不写入任何数据
	require.Nil(t, database.Migrator().DropTable(&metadata.Relation{}, &metadata.Clue{}))
	count, err = ingest(setting, context.TODO(), "clues.csv", strings.NewReader("正文\na\nb\n"))
	assert.NotNil(t, err)
	assert.Zero(t, count)
	assert.Zero(t, *mutations)
}

func TestParseSendTime(t *testing.T) {
	cases := []struct {
		value string
		ok    bool
		want  time.Time
	}{
		{"2024-05-01 10:30:00", true, time.Date(2024, 5, 1, 10, 30, 0, 0, shanghai)},
		{"2024-05-01 10:30", true, time.Date(2024, 5, 1, 10, 30, 0, 0, shanghai)},
		{"2024-05-01", true, time.Date(2024, 5, 1, 0, 0, 0, 0, shanghai)},
		{"2024/5/1 8:05:09", true, time.Date(2024, 5, 1, 8, 5, 9, 0, shanghai)},
		{"2024/05/01", true, time.Date(2024, 5, 1, 0, 0, 0, 0, shanghai)},
		{"2024-05-01T10:30:00Z", true, time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)},
		{"45413", true, time.Date(2024, 5, 1, 0, 0, 0, 0, shanghai)},
		{"昨天", false, time.Time{}},
		{"-3", false, time.Time{}},
	}

	for _, c := range cases {
		got, ok := parseSendTime(c.value, shanghai)
		assert.Equal(t, c.ok, ok, c.value)
		if c.ok {
			assert.True(t, c.want.Equal(got), "%s: want %s got %s", c.value, c.want, got)
		}
	}
}

func TestRowToClue_EmptyRow(t *testing.T) {
	fields := mapHeader([]string{"正文", "Content"})
	assert.Equal(t, []field{fieldContent, fieldNone}, fields)

	_, ok := rowToClue(fields, []string{" ", ""}, shanghai, time.Now())
	assert.False(t, ok)

	// 只有未识别列有值的行仍然入库
	clue, ok := rowToClue(fields, []string{"", "x"}, shanghai, time.Now())
	assert.True(t, ok)
	assert.Nil(t, clue.Content)
}
