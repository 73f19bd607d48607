// Package web 提供仪表盘页面、数据接口和实时日志
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"golang.org/x/sync/errgroup"

	"AirlineInsights/src/datasource/file"
	"AirlineInsights/src/processor"
	"AirlineInsights/src/report"
	"AirlineInsights/src/storage"
)

//go:embed templates/*.html
var templates embed.FS

const (
	sessionName     = "airdash"
	shutdownTimeout = 5 * time.Second
)

// Reporter 构建两种视角，*report.Builder 实现该接口
type Reporter interface {
	Segmentation() (*file.Segmentation, error)
	Traveler() (*processor.Traveler, error)
	Analyst() (*processor.Analyst, error)
	Tables(m report.Mode) ([]processor.Table, error)
}

// Changes 数据变化通知，*file.FileMonitor 实现该接口
type Changes interface {
	Subscribe() chan struct{}
	Unsubscribe(ch chan struct{})
}

// Options 服务器参数
type Options struct {
	Addr              string
	SessionSecret     string
	ReadHeaderTimeout time.Duration
	Footer            string

	Reports Reporter
	Changes Changes // 为空时 /events 不推送
	Logger  *storage.Logger
}

// Server 仪表盘 HTTP 服务
type Server struct {
	opts     Options
	sessions *sessions.CookieStore
	page     *template.Template
}

// NewServer 解析页面模板并创建会话存储
func NewServer(opts Options) (*Server, error) {
	if opts.Reports == nil {
		return nil, errors.New("web: Reports 不能为空")
	}
	if opts.ReadHeaderTimeout == 0 {
		opts.ReadHeaderTimeout = 10 * time.Second
	}

	page, err := template.ParseFS(templates, "templates/dashboard.html")
	if err != nil {
		return nil, fmt.Errorf("解析页面模板失败: %w", err)
	}

	store := sessions.NewCookieStore([]byte(opts.SessionSecret))
	store.MaxAge(86400 * 30)
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.SameSite = http.SameSiteLaxMode

	return &Server{opts: opts, sessions: store, page: page}, nil
}

// Handler 路由
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RealIP,
		requestLogger(s.opts.Logger),
		middleware.Recoverer,
		middleware.Compress(5),
	)

	r.Get("/", s.index)
	r.Get("/events", s.events)
	r.Get("/logs", s.logs)
	r.Get("/api/{mode}", s.api)
	r.Get("/export/{mode}.xlsx", s.export)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// Serve 监听直到 ctx 结束，然后优雅关闭
func (s *Server) Serve(ctx context.Context) error {
	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    s.opts.Addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: s.opts.ReadHeaderTimeout,
	}

	eg.Go(func() error {
		s.info("Web服务已启动: " + s.opts.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("Web服务异常: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.info("Web服务关闭中...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

func (s *Server) info(msg string) {
	if s.opts.Logger != nil {
		s.opts.Logger.Info(msg)
	}
}

func (s *Server) errorf(format string, args ...interface{}) {
	if s.opts.Logger != nil {
		s.opts.Logger.Error(fmt.Sprintf(format, args...))
	}
}

// requestLogger 每个请求一行访问日志
func requestLogger(logger *storage.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if logger == nil {
				next.ServeHTTP(w, r)
				return
			}
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Debug(fmt.Sprintf("%s %s %s %d %dB %v",
					r.RemoteAddr, r.Method, r.URL.RequestURI(), ww.Status(), ww.BytesWritten(), time.Since(start)))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
