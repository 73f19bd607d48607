// Package export 将表格写入 Excel 工作簿
package export

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/xuri/excelize/v2"

	"AirlineInsights/src/processor"
)

const maxSheetName = 31

// Workbook 每个表格一个工作表
func Workbook(tables []processor.Table) (*excelize.File, error) {
	f := excelize.NewFile()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("创建表头样式失败: %w", err)
	}

	used := map[string]int{}
	for i, t := range tables {
		name := sheetName(t.Title, used)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				f.Close()
				return nil, err
			}
		} else if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("创建工作表 %s 失败: %w", name, err)
		}

		// 写入列名
		for c, col := range t.Columns {
			cell, _ := excelize.CoordinatesToCellName(c+1, 1)
			f.SetCellValue(name, cell, col)
		}
		if len(t.Columns) > 0 {
			last, _ := excelize.CoordinatesToCellName(len(t.Columns), 1)
			f.SetCellStyle(name, "A1", last, bold)
		}

		// 写入数据
		for r, row := range t.Rows {
			for c, v := range row {
				cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
				if v == nil {
					continue
				}
				if fv, ok := v.(float64); ok && (math.IsNaN(fv) || math.IsInf(fv, 0)) {
					continue
				}
				if err := f.SetCellValue(name, cell, v); err != nil {
					f.Close()
					return nil, fmt.Errorf("写入 %s!%s 失败: %w", name, cell, err)
				}
			}
		}
	}
	return f, nil
}

// SaveToExcel 写入文件
func SaveToExcel(tables []processor.Table, filePath string) error {
	f, err := Workbook(tables)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(filePath); err != nil {
		return fmt.Errorf("保存Excel文件失败: %w", err)
	}
	return nil
}

// Write 写入 w，用于下载
func Write(w io.Writer, tables []processor.Table) error {
	f, err := Workbook(tables)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("输出Excel失败: %w", err)
	}
	return nil
}

// sheetName 去掉非法字符并截断到 31 个字符，重名时追加序号
func sheetName(title string, used map[string]int) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, strings.TrimSpace(title))
	if name == "" {
		name = "Sheet"
	}
	name = truncate(name, maxSheetName)

	n := used[name]
	used[name] = n + 1
	if n == 0 {
		return name
	}
	suffix := fmt.Sprintf(" (%d)", n+1)
	return truncate(name, maxSheetName-len(suffix)) + suffix
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
