// monitor.go
package file

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"AirlineInsights/src/storage"
)

// DefaultDebounce 连续写入合并为一次变更
const DefaultDebounce = 250 * time.Millisecond

// Invalidator 文件变更时需要清空的缓存
type Invalidator interface {
	Invalidate()
}

// FileMonitor 监控数据目录，文件变化后清空缓存并通知订阅者
type FileMonitor struct {
	watchDir string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	target   Invalidator
	logger   *storage.Logger

	mu        sync.Mutex
	lastFile  string
	listeners map[chan struct{}]struct{}
}

// NewFileMonitor 创建目录监控器
func NewFileMonitor(dir string, target Invalidator, logger *storage.Logger) (*FileMonitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	return &FileMonitor{
		watchDir:  dir,
		watcher:   watcher,
		debounce:  DefaultDebounce,
		target:    target,
		logger:    logger,
		listeners: make(map[chan struct{}]struct{}),
	}, nil
}

// SetDebounce 修改防抖间隔，需在 Run 之前调用
func (m *FileMonitor) SetDebounce(d time.Duration) {
	m.debounce = d
}

// Run 阻塞直到 ctx 取消，返回时关闭底层 watcher
func (m *FileMonitor) Run(ctx context.Context) error {
	defer func() { _ = m.watcher.Close() }()

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !isDataFile(event.Name) {
				continue
			}

			m.mu.Lock()
			m.lastFile = event.Name
			m.mu.Unlock()

			if timer == nil {
				timer = time.NewTimer(m.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(m.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			m.changed()

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			if m.logger != nil {
				m.logger.Error("文件监控错误: " + err.Error())
			}
		}
	}
}

func (m *FileMonitor) changed() {
	m.mu.Lock()
	name := m.lastFile
	m.mu.Unlock()

	if m.logger != nil {
		m.logger.Info("数据文件变化: " + name)
	}
	if m.target != nil {
		m.target.Invalidate()
	}
	m.broadcast()
}

// LastFile 最近一次变化的文件
func (m *FileMonitor) LastFile() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastFile
}

// Subscribe 返回变更通知通道，调用方用完需 Unsubscribe
func (m *FileMonitor) Subscribe() chan struct{} {
	ch := make(chan struct{}, 1)
	m.mu.Lock()
	m.listeners[ch] = struct{}{}
	m.mu.Unlock()
	return ch
}

// Unsubscribe 移除并关闭通道
func (m *FileMonitor) Unsubscribe(ch chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.listeners[ch]; ok {
		delete(m.listeners, ch)
		close(ch)
	}
}

func (m *FileMonitor) broadcast() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ch := range m.listeners {
		select {
		case ch <- struct{}{}:
		default: // 已有未读通知
		}
	}
}

func isDataFile(name string) bool {
	switch filepath.Ext(name) {
	case ".csv", ".npy", ".xlsx":
		return true
	}
	return false
}
