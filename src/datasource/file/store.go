// store.go
package file

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/go-gota/gota/dataframe"
	"gonum.org/v1/gonum/mat"

	"AirlineInsights/src/storage"
)

var (
	// ErrSegmentationMissing 分群数据或投影坐标文件不存在
	ErrSegmentationMissing = errors.New("segmentation data files not found")
	// ErrAnalysisMissing 航司分析数据文件不存在
	ErrAnalysisMissing = errors.New("airline analysis dataset not found")
)

// Layout 数据文件路径，*config.Config 实现该接口
type Layout interface {
	SegmentationPath() string
	ComponentsPath() string
	PerformancePath() string
	AnalysisPath() string
}

// Segmentation 分群数据及其二维投影
type Segmentation struct {
	Data       dataframe.DataFrame
	Components *mat.Dense
}

// Store 缓存已加载的数据集，文件变化时由 FileMonitor 清空
type Store struct {
	layout   Layout
	encoding string
	cache    bool
	logger   *storage.Logger

	mu          sync.RWMutex
	seg         *Segmentation
	analysis    *dataframe.DataFrame
	performance *dataframe.DataFrame
	perfLoaded  bool
	// gen 每次 Invalidate 加一，读取期间被清空的结果不写入缓存
	gen uint64
}

// NewStore 创建数据仓库，cache 为 false 时每次都重新读取
func NewStore(layout Layout, encoding string, cache bool, logger *storage.Logger) *Store {
	return &Store{
		layout:   layout,
		encoding: encoding,
		cache:    cache,
		logger:   logger,
	}
}

// Segmentation 读取分群数据和投影坐标，任一文件缺失返回 ErrSegmentationMissing
func (s *Store) Segmentation() (*Segmentation, error) {
	if seg := s.cachedSegmentation(); seg != nil {
		return seg, nil
	}

	gen := s.generation()
	df, err := ReadCSVToDataFrame(s.layout.SegmentationPath(), s.encoding)
	if err != nil {
		return nil, missingAs(err, ErrSegmentationMissing)
	}
	components, err := ReadNPY(s.layout.ComponentsPath())
	if err != nil {
		return nil, missingAs(err, ErrSegmentationMissing)
	}

	seg := &Segmentation{Data: df, Components: components}
	r, c := components.Dims()
	s.info(fmt.Sprintf("加载分群数据 %d 行, 投影 %dx%d", df.Nrow(), r, c))

	s.keep(gen, func() { s.seg = seg })
	return seg, nil
}

func (s *Store) cachedSegmentation() *Segmentation {
	if !s.cache {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seg
}

// Analysis 读取航司分析数据，文件缺失返回 ErrAnalysisMissing
func (s *Store) Analysis() (dataframe.DataFrame, error) {
	if s.cache {
		s.mu.RLock()
		cached := s.analysis
		s.mu.RUnlock()
		if cached != nil {
			return *cached, nil
		}
	}

	gen := s.generation()
	df, err := ReadCSVToDataFrame(s.layout.AnalysisPath(), s.encoding)
	if err != nil {
		return dataframe.DataFrame{}, missingAs(err, ErrAnalysisMissing)
	}
	s.info(fmt.Sprintf("加载分析数据 %d 行", df.Nrow()))

	s.keep(gen, func() { s.analysis = &df })
	return df, nil
}

// Performance 读取航司绩效表，文件不存在时 ok 为 false
func (s *Store) Performance() (df dataframe.DataFrame, ok bool, err error) {
	if s.cache {
		s.mu.RLock()
		loaded, cached := s.perfLoaded, s.performance
		s.mu.RUnlock()
		if loaded {
			if cached == nil {
				return dataframe.DataFrame{}, false, nil
			}
			return *cached, true, nil
		}
	}

	gen := s.generation()
	df, err = ReadCSVToDataFrame(s.layout.PerformancePath(), s.encoding)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		ok, err = false, nil
	case err != nil:
		return dataframe.DataFrame{}, false, err
	default:
		ok = true
	}

	s.keep(gen, func() {
		s.perfLoaded = true
		s.performance = nil
		if ok {
			s.performance = &df
		}
	})
	return df, ok, nil
}

// Invalidate 清空缓存，下一次访问重新读取文件
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.seg = nil
	s.analysis = nil
	s.performance = nil
	s.perfLoaded = false
	s.gen++
	s.mu.Unlock()
	s.info("数据缓存已清空")
}

func (s *Store) generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// keep 开启缓存且读取期间没有 Invalidate 时写入缓存
func (s *Store) keep(gen uint64, set func()) {
	if !s.cache {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen {
		set()
	}
}

func (s *Store) info(msg string) {
	if s.logger != nil {
		s.logger.Info(msg)
	}
}

// missingAs 文件不存在时包装为对应的哨兵错误，其它错误原样返回
func missingAs(err, sentinel error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", sentinel, err)
	}
	return err
}
