package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	pkgerrors "github.com/vasuki20/suss-student-discussion-data/pkg/errors"
)

// Record 一行源数据：列名（小写）→ 原始单元格文本；缺失列读为空串（NULL）
type Record map[string]string

// Batch 一张表的完整源数据
type Batch struct {
	Source  string
	Columns []string
	Records []Record
	// Rows 与 Records 一一对应的源文件行号（含表头，从 1 开始）
	Rows []int
}

var errEmptySheet = errors.New("工作表为空")

// ReadBatch 读取数据源并按扩展名解析（.xlsx / .csv）
// 任何打开或解析失败都归类为 ErrSourceUnavailable
func ReadBatch(ctx context.Context, src Source) (*Batch, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrSourceUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrSourceUnavailable, err)
	}
	defer rc.Close()

	var rows [][]string
	switch ext := strings.ToLower(filepath.Ext(src.Name())); ext {
	case ".xlsx", ".xlsm":
		rows, err = readXLSX(rc)
	case ".csv":
		rows, err = readCSV(rc)
	default:
		err = fmt.Errorf("不支持的文件格式 %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", pkgerrors.ErrSourceUnavailable, src.Name(), err)
	}

	batch, err := toBatch(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", pkgerrors.ErrSourceUnavailable, src.Name(), err)
	}
	batch.Source = src.Name()
	return batch, nil
}

// readXLSX 读取第一个工作表；RawCellValue 保留日期的序列号原值，由解码阶段统一转换
func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("无法解析Excel文件: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("读取工作表失败: %w", err)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	// 去掉 Excel 导出的 UTF-8 BOM
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	return cr.ReadAll()
}

// toBatch 第一行为表头（大小写不敏感，支持任意列序），跳过全空行
func toBatch(rows [][]string) (*Batch, error) {
	if len(rows) == 0 {
		return nil, errEmptySheet
	}

	header := parseHeader(rows[0])
	batch := &Batch{}
	for _, col := range header {
		if col != "" {
			batch.Columns = append(batch.Columns, col)
		}
	}
	if len(batch.Columns) == 0 {
		return nil, errors.New("表头为空")
	}

	for i := 1; i < len(rows); i++ {
		rec := make(Record, len(batch.Columns))
		empty := true
		for idx, col := range header {
			if col == "" || idx >= len(rows[i]) {
				continue
			}
			v := strings.TrimSpace(rows[i][idx])
			if v != "" {
				empty = false
			}
			rec[col] = v
		}
		if empty {
			continue
		}
		batch.Records = append(batch.Records, rec)
		batch.Rows = append(batch.Rows, i+1)
	}
	return batch, nil
}

// parseHeader 列索引 → 规范化列名；重复列以首次出现为准
func parseHeader(header []string) []string {
	seen := make(map[string]bool, len(header))
	out := make([]string, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out[i] = name
	}
	return out
}
