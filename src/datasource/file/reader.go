// reader.go
package file

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/sbinet/npyio"
	"github.com/tealeg/xlsx"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"gonum.org/v1/gonum/mat"
)

// NaNValues 读表时视为缺失值的内容
var NaNValues = []string{"", "NA", "NaN", "nan", "<nil>", "null"}

// ReadCSVToDataFrame 读取 CSV 文件，按 encoding 解码
// 同名 .xlsx 存在且 CSV 不存在时改读 xlsx 第一个工作表
func ReadCSVToDataFrame(filePath, encodingName string) (dataframe.DataFrame, error) {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		alt := strings.TrimSuffix(filePath, filepath.Ext(filePath)) + ".xlsx"
		if _, altErr := os.Stat(alt); altErr == nil {
			return ReadXLSX(alt, "")
		}
		return dataframe.DataFrame{}, fmt.Errorf("failed to open csv file: %w", err)
	}

	f, err := os.Open(filePath)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("failed to open csv file: %w", err)
	}
	defer f.Close()

	return ReadCSV(f, encodingName)
}

// ReadCSV 从 reader 解析 DataFrame
func ReadCSV(r io.Reader, encodingName string) (dataframe.DataFrame, error) {
	dec, err := decoderFor(encodingName)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	df := dataframe.ReadCSV(
		transform.NewReader(r, dec),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.NaNValues(NaNValues),
		dataframe.WithLazyQuotes(true),
	)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("解析CSV失败: %w", df.Err)
	}
	return df, nil
}

// decoderFor 按名称取解码器，UTF-8 时去除 BOM
func decoderFor(name string) (transform.Transformer, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "utf-8" || name == "utf8" {
		return unicode.BOMOverride(encoding.Nop.NewDecoder()), nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("不支持的编码 %q: %w", name, err)
	}
	return enc.NewDecoder(), nil
}

// ReadXLSX 读取 xlsx 工作表，sheetName 为空时取第一个工作表
func ReadXLSX(filePath, sheetName string) (dataframe.DataFrame, error) {
	// 1. 使用tealeg/xlsx打开Excel文件
	xlFile, err := xlsx.OpenFile(filePath)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("xlsx open file false: %w", err)
	}

	// 2. 获取工作表
	if len(xlFile.Sheets) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("excel文件中没有工作表: %s", filePath)
	}
	sheet := xlFile.Sheets[0]
	if sheetName != "" {
		s, ok := xlFile.Sheet[sheetName]
		if !ok {
			return dataframe.DataFrame{}, fmt.Errorf("工作表 %s 不存在", sheetName)
		}
		sheet = s
	}

	// 3. 转换为Gota DataFrame
	return convertSheetToDataFrame(sheet)
}

// convertSheetToDataFrame 将xlsx.Sheet转换为dataframe.DataFrame，首行为标题行
func convertSheetToDataFrame(sheet *xlsx.Sheet) (dataframe.DataFrame, error) {
	if len(sheet.Rows) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("sheet %s rows为0", sheet.Name)
	}

	var headers []string
	for _, cell := range sheet.Rows[0].Cells {
		headers = append(headers, strings.TrimSpace(cell.Value))
	}

	records := make([][]string, 0, len(sheet.Rows))
	records = append(records, headers)

	// 填充数据(从第二行开始)
	for _, row := range sheet.Rows[1:] {
		if row == nil {
			continue
		}
		record := make([]string, len(headers))
		for i, cell := range row.Cells {
			if i < len(headers) { // 确保不超出列数范围
				record[i] = cell.Value
			}
		}
		records = append(records, record)
	}

	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.NaNValues(NaNValues),
	)
	if df.Err != nil {
		return dataframe.DataFrame{}, df.Err
	}
	return df, nil
}

// ReadNPY 读取 numpy 二维数组
func ReadNPY(filePath string) (*mat.Dense, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open npy file: %w", err)
	}

	r, err := npyio.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("解析npy头失败 %s: %w", filePath, err)
	}

	shape := r.Header.Descr.Shape
	if len(shape) != 2 {
		return nil, fmt.Errorf("npy数组维度为 %d, 需要二维", len(shape))
	}

	var m mat.Dense
	if err := r.Read(&m); err != nil {
		return nil, fmt.Errorf("读取npy数据失败 %s: %w", filePath, err)
	}
	return &m, nil
}
