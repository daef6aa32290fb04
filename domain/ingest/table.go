package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"deeptrace-backend-controller/utils"
	"github.com/xuri/excelize/v2"
)

var (
	ErrEmptyUpload       = errors.New("uploaded file has no header row")
	ErrUnsupportedFormat = errors.New("unsupported file format, expect .xlsx or .csv")
)

const (
	FormatXLSX = ".xlsx"
	FormatCSV  = ".csv"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readTable 读取表格的全部行，第一行为表头。xlsx 只读取第一个工作表，单元格取原始值。
func readTable(filename string, r io.Reader) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case FormatXLSX:
		return readXLSX(r)
	case FormatCSV:
		return readCSV(r)
	default:
		return nil, utils.WrapErrorf(ErrUnsupportedFormat, "file [%s]", filename)
	}
}

func readXLSX(r io.Reader) ([][]string, error) {
	file, err := excelize.OpenReader(r)
	if err != nil {
		return nil, utils.WrapError(err, "open xlsx fail")
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyUpload
	}

	rows, err := file.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, utils.WrapErrorf(err, "read rows of sheet [%s] fail", sheets[0])
	}

	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	buffered := bufio.NewReader(r)
	if head, err := buffered.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = buffered.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(buffered)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, utils.WrapError(err, "parse csv fail")
	}

	return rows, nil
}
