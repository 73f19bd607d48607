package report

import (
	"fmt"
	"io"
	"math"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"AirlineInsights/src/processor"
)

// Print 以终端表格输出
func Print(w io.Writer, tables []processor.Table) {
	for _, t := range tables {
		if len(t.Rows) == 0 {
			fmt.Fprintf(w, "%s\n(0 rows)\n\n", t.Title)
			continue
		}
		tw := table.NewWriter()
		tw.SetOutputMirror(w)
		tw.SetTitle(t.Title)
		tw.SetStyle(table.StyleLight)

		header := make(table.Row, len(t.Columns))
		configs := make([]table.ColumnConfig, 0, len(t.Columns))
		for i, c := range t.Columns {
			header[i] = c
		}
		tw.AppendHeader(header)

		numeric := make([]bool, len(t.Columns))
		for _, r := range t.Rows {
			row := make(table.Row, len(r))
			for i, v := range r {
				row[i] = cell(v)
				switch v.(type) {
				case int, float64:
					numeric[i] = true
				}
			}
			tw.AppendRow(row)
		}
		for i, isNum := range numeric {
			if isNum {
				configs = append(configs, table.ColumnConfig{Number: i + 1, Align: text.AlignRight})
			}
		}
		tw.SetColumnConfigs(configs)
		tw.Render()
		io.WriteString(w, "\n")
	}
}

func cell(v interface{}) interface{} {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		if math.IsNaN(x) {
			return ""
		}
	}
	return v
}
