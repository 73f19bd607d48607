package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel 定义日志级别类型
type LogLevel int

// 日志级别常量定义
const (
	DEBUG   LogLevel = iota // 调试信息
	INFO                    // 普通信息
	WARNING                 // 警告信息
	ERROR                   // 错误信息
	FATAL                   // 致命错误
)

// Logger 日志记录器结构体
// 底层由 zap 编码写入文件，订阅者通过 hook 收到格式化后的条目
type Logger struct {
	filename    string
	sink        *fileSink
	zl          *zap.Logger
	mu          sync.Mutex    // 保护订阅者列表
	subscribers []chan string // 订阅者通道列表
}

// fileSink 可替换底层文件的 WriteSyncer，用于日志轮转
type fileSink struct {
	mu   sync.Mutex
	file *os.File
}

func (s *fileSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return len(p), nil
	}
	return s.file.Write(p)
}

func (s *fileSink) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	return s.file.Sync()
}

func (s *fileSink) swap(f *os.File) *os.File {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.file
	s.file = f
	return old
}

func (s *fileSink) size() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return 0, nil
	}
	info, err := s.file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// NewLogger 创建新的日志记录器
// 参数:
//
//	filename: 日志文件路径
//
// 返回值:
//
//	*Logger: 日志记录器实例
//	error: 创建过程中的错误
func NewLogger(filename string) (*Logger, error) {
	file, err := openLogFile(filename)
	if err != nil {
		return nil, err
	}

	l := &Logger{
		filename: filename,
		sink:     &fileSink{file: file},
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(l.sink), zapcore.DebugLevel)
	l.zl = zap.New(core, zap.Hooks(l.publish))
	return l, nil
}

func openLogFile(filename string) (*os.File, error) {
	if dir := filepath.Dir(filename); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	// 打开或创建日志文件，权限设置为0644
	return os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

// Zap 返回底层 zap.Logger
func (l *Logger) Zap() *zap.Logger {
	return l.zl
}

// Close 关闭日志文件
func (l *Logger) Close() error {
	_ = l.zl.Sync()
	if old := l.sink.swap(nil); old != nil {
		return old.Close()
	}
	return nil
}

// Reopen 重新打开一个文件
// 参数：
// filename：新文件的路径
// 返回值：
// error：重建文件时的错误
func (l *Logger) Reopen(filename string) error {
	file, err := openLogFile(filename)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.filename = filename
	l.mu.Unlock()

	if old := l.sink.swap(file); old != nil {
		_ = old.Close()
	}
	return nil
}

// Log 记录日志方法
// 参数:
//
//	level: 日志级别
//	message: 日志消息内容
func (l *Logger) Log(level LogLevel, message string) {
	switch level {
	case DEBUG:
		l.zl.Debug(message)
	case INFO:
		l.zl.Info(message)
	case WARNING:
		l.zl.Warn(message)
	case FATAL:
		// 只记录不退出，由调用方决定
		l.zl.DPanic(message)
	default:
		l.zl.Error(message)
	}
}

// publish 通知所有订阅者
func (l *Logger) publish(e zapcore.Entry) error {
	level := levelFromZap(e.Level)
	entry := fmt.Sprintf("[%s] %s: %s",
		e.Time.Format("2006-01-02 15:04:05"),
		level.String(),
		e.Message)

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ch := range l.subscribers {
		select {
		case ch <- entry: // 尝试发送日志条目
		default: // 如果通道已满则跳过
		}
	}
	return nil
}

func levelFromZap(lvl zapcore.Level) LogLevel {
	switch {
	case lvl <= zapcore.DebugLevel:
		return DEBUG
	case lvl == zapcore.InfoLevel:
		return INFO
	case lvl == zapcore.WarnLevel:
		return WARNING
	case lvl == zapcore.ErrorLevel:
		return ERROR
	default:
		return FATAL
	}
}

// CheckRotate 文件超过 maxSize 时轮转，maxSize 形如 "10 * 1024 * 1024"
func (l *Logger) CheckRotate(maxSize string) error {
	size, err := l.sink.size()
	if err != nil {
		return err
	}

	limit := eval(maxSize)
	if limit > 0 && size > limit {
		return l.rotateLog()
	}
	return nil
}

func (l *Logger) rotateLog() error {
	l.mu.Lock()
	filename := l.filename
	l.mu.Unlock()

	ext := filepath.Ext(filename)
	rotated := fmt.Sprintf("%s.%s%s", strings.TrimSuffix(filename, ext), time.Now().Format("20060102150405"), ext)

	if old := l.sink.swap(nil); old != nil {
		_ = old.Close()
	}
	if err := os.Rename(filename, rotated); err != nil {
		return err
	}
	return l.Reopen(filename)
}

// Subscribe 订阅日志消息
// 返回值:
//
//	<-chan string: 只读通道，用于接收日志消息
func (l *Logger) Subscribe() <-chan string {
	l.mu.Lock()
	defer l.mu.Unlock()

	// 创建带缓冲的通道(容量100)
	ch := make(chan string, 100)
	// 将新通道加入订阅者列表
	l.subscribers = append(l.subscribers, ch)
	return ch
}

// Unsubscribe 取消订阅，通道随后被关闭
func (l *Logger) Unsubscribe(ch <-chan string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, sub := range l.subscribers {
		if sub == ch {
			l.subscribers = append(l.subscribers[:i], l.subscribers[i+1:]...)
			close(sub)
			return
		}
	}
}

// String 实现LogLevel的String方法
// 返回值:
//
//	string: 日志级别的字符串表示
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARNING:
		return "WARNING"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

func eval(expr string) int64 {
	parts := strings.Split(expr, "*")
	var result int64 = 1
	for _, part := range parts {
		num, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return 0
		}
		result *= int64(num)
	}
	return result
}

// 以下是快捷日志方法
func (l *Logger) Debug(msg string)   { l.Log(DEBUG, msg) }   // 记录调试信息
func (l *Logger) Info(msg string)    { l.Log(INFO, msg) }    // 记录普通信息
func (l *Logger) Warning(msg string) { l.Log(WARNING, msg) } // 记录警告信息
func (l *Logger) Error(msg string)   { l.Log(ERROR, msg) }   // 记录错误信息
func (l *Logger) Fatal(msg string)   { l.Log(FATAL, msg) }   // 记录致命错误
