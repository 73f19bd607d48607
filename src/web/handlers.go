package web

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/starfederation/datastar-go/datastar"

	"AirlineInsights/src/datasource/file"
	"AirlineInsights/src/export"
	"AirlineInsights/src/processor"
	"AirlineInsights/src/report"
)

// currentMode 查询参数优先，其次会话，默认旅客视角
func (s *Server) currentMode(w http.ResponseWriter, r *http.Request) report.Mode {
	mode := report.Traveler
	sess, err := s.sessions.Get(r, sessionName)
	if err != nil {
		// 签名密钥变化后旧 cookie 无法解码，使用新会话
		s.errorf("读取会话失败: %v", err)
	}
	if v, ok := sess.Values["mode"].(string); ok {
		if m, err := report.ParseMode(v); err == nil {
			mode = m
		}
	}

	if q := r.URL.Query().Get("mode"); q != "" {
		if m, err := report.ParseMode(q); err == nil {
			mode = m
		}
	}

	sess.Values["mode"] = string(mode)
	if err := sess.Save(r, w); err != nil {
		s.errorf("保存会话失败: %v", err)
	}
	return mode
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	mode := s.currentMode(w, r)
	p := newPage(mode, s.opts.Footer)
	status := s.build(p, mode)
	s.render(w, p, status)
}

// build 填充页面内容，返回 HTTP 状态码
func (s *Server) build(p *page, mode report.Mode) int {
	// 两种视角都先检查分群数据
	if _, err := s.opts.Reports.Segmentation(); err != nil {
		return s.fail(p, err)
	}

	switch mode {
	case report.Analyst:
		a, err := s.opts.Reports.Analyst()
		if errors.Is(err, file.ErrAnalysisMissing) {
			p.Warning = analysisMissingMsg
			return http.StatusOK
		}
		if err != nil {
			return s.fail(p, err)
		}
		if err := analystSections(p, a); err != nil {
			return s.fail(p, err)
		}
	default:
		t, err := s.opts.Reports.Traveler()
		if err != nil {
			return s.fail(p, err)
		}
		if err := travelerSections(p, t); err != nil {
			return s.fail(p, err)
		}
	}
	return http.StatusOK
}

func (s *Server) fail(p *page, err error) int {
	p.Sections = nil
	if errors.Is(err, file.ErrSegmentationMissing) {
		s.errorf("分群数据缺失: %v", err)
		p.Error = segmentationMissingMsg
		return http.StatusServiceUnavailable
	}
	s.errorf("页面渲染失败: %v", err)
	p.Error = "🚫 " + err.Error()
	return http.StatusInternalServerError
}

func (s *Server) render(w http.ResponseWriter, p *page, status int) {
	var buf bytes.Buffer
	if err := s.page.Execute(&buf, p); err != nil {
		s.errorf("模板渲染失败: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// events 数据文件变化时让浏览器刷新页面
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	ctx := r.Context()

	if s.opts.Changes == nil {
		<-ctx.Done()
		return
	}
	updates := s.opts.Changes.Subscribe()
	defer s.opts.Changes.Unsubscribe(updates)

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-updates:
			if !ok {
				return
			}
			if err := sse.ExecuteScript("window.location.reload()"); err != nil {
				return
			}
		}
	}
}

// logs 实时输出日志
func (s *Server) logs(w http.ResponseWriter, r *http.Request) {
	if s.opts.Logger == nil {
		http.Error(w, "logger disabled", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")

	logChan := s.opts.Logger.Subscribe()
	defer s.opts.Logger.Unsubscribe(logChan)

	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}
	for {
		select {
		case msg, ok := <-logChan:
			if !ok {
				return
			}
			// 客户端断开时写入失败
			if _, err := fmt.Fprintln(w, msg); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return
		}
	}
}

type apiResponse struct {
	Mode   report.Mode       `json:"mode"`
	Tables []processor.Table `json:"tables"`
}

func (s *Server) api(w http.ResponseWriter, r *http.Request) {
	tables, mode, status, err := s.tables(r)
	if err != nil {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Mode: mode, Tables: withoutNaN(tables)})
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	tables, mode, status, err := s.tables(r)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, tables); err != nil {
		s.errorf("导出失败: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="airline-%s.xlsx"`, mode))
	_, _ = buf.WriteTo(w)
}

// tables 解析路径中的视角并计算表格，出错时给出状态码
func (s *Server) tables(r *http.Request) ([]processor.Table, report.Mode, int, error) {
	mode, err := report.ParseMode(chi.URLParam(r, "mode"))
	if err != nil {
		return nil, "", http.StatusNotFound, err
	}
	tables, err := s.opts.Reports.Tables(mode)
	switch {
	case errors.Is(err, file.ErrSegmentationMissing):
		return nil, mode, http.StatusServiceUnavailable, err
	case errors.Is(err, file.ErrAnalysisMissing):
		return nil, mode, http.StatusNotFound, err
	case err != nil:
		s.errorf("计算 %s 表格失败: %v", mode, err)
		return nil, mode, http.StatusInternalServerError, err
	}
	return tables, mode, http.StatusOK, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// withoutNaN JSON 不支持 NaN，替换为 null
func withoutNaN(tables []processor.Table) []processor.Table {
	out := make([]processor.Table, len(tables))
	for i, t := range tables {
		out[i] = processor.Table{Title: t.Title, Columns: t.Columns, Rows: make([][]interface{}, len(t.Rows))}
		for r, row := range t.Rows {
			cells := make([]interface{}, len(row))
			for c, v := range row {
				if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
					v = nil
				}
				cells[c] = v
			}
			out[i].Rows[r] = cells
		}
	}
	return out
}
