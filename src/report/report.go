// Package report 从数据仓库构建两种视角的统计结果
package report

import (
	"fmt"
	"strings"

	"github.com/go-gota/gota/dataframe"

	"AirlineInsights/src/config"
	"AirlineInsights/src/datasource/file"
	"AirlineInsights/src/processor"
)

// Mode 页面视角
type Mode string

const (
	Traveler Mode = "traveler"
	Analyst  Mode = "analyst"
)

// Modes 侧边栏中的顺序
var Modes = []Mode{Traveler, Analyst}

// ParseMode 解析视角名称，大小写不敏感
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case Traveler:
		return Traveler, nil
	case Analyst:
		return Analyst, nil
	}
	return "", fmt.Errorf("未知视角 %q, 可选 traveler|analyst", s)
}

// Label 侧边栏显示的名称
func (m Mode) Label() string {
	if m == Analyst {
		return "Airline Analyst"
	}
	return "Traveler"
}

// Title 页面标题
func (m Mode) Title() string {
	if m == Analyst {
		return "📊 Airline Strategy Dashboard"
	}
	return "🌍 Traveler Insights Dashboard"
}

// Source 数据来源，*file.Store 实现该接口
type Source interface {
	Segmentation() (*file.Segmentation, error)
	Analysis() (dataframe.DataFrame, error)
	Performance() (dataframe.DataFrame, bool, error)
}

// Builder 把数据集交给 processor 计算
type Builder struct {
	src Source
	dc  *config.DataConfig
}

func NewBuilder(src Source, dc *config.DataConfig) *Builder {
	return &Builder{src: src, dc: dc}
}

// Segmentation 仅检查分群数据是否可用，两种视角都依赖它
func (b *Builder) Segmentation() (*file.Segmentation, error) {
	return b.src.Segmentation()
}

// Traveler 旅客视角
func (b *Builder) Traveler() (*processor.Traveler, error) {
	seg, err := b.src.Segmentation()
	if err != nil {
		return nil, err
	}
	t, err := processor.BuildTraveler(seg.Data, seg.Components, b.dc)
	if err != nil {
		return nil, fmt.Errorf("旅客视角计算失败: %w", err)
	}
	return t, nil
}

// Analyst 航司视角，绩效表存在时一并附上
func (b *Builder) Analyst() (*processor.Analyst, error) {
	df, err := b.src.Analysis()
	if err != nil {
		return nil, err
	}
	a, err := processor.BuildAnalyst(df, b.dc)
	if err != nil {
		return nil, fmt.Errorf("航司视角计算失败: %w", err)
	}

	perf, ok, err := b.src.Performance()
	if err != nil {
		return nil, fmt.Errorf("读取绩效表失败: %w", err)
	}
	if ok {
		a.Performance = processor.PerformanceTable(perf)
	}
	return a, nil
}

// Tables 某一视角的全部表格
func (b *Builder) Tables(m Mode) ([]processor.Table, error) {
	switch m {
	case Traveler:
		t, err := b.Traveler()
		if err != nil {
			return nil, err
		}
		return t.Tables(), nil
	case Analyst:
		a, err := b.Analyst()
		if err != nil {
			return nil, err
		}
		return a.Tables(), nil
	}
	return nil, fmt.Errorf("未知视角 %q", m)
}
