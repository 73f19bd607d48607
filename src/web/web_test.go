package web

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/mat"

	"AirlineInsights/src/config"
	"AirlineInsights/src/datasource/file"
	"AirlineInsights/src/report"
	"AirlineInsights/src/storage"
)

const footer = "🛠 Built with Go · ✨ Powered by clusters and curiosity"

type memorySource struct {
	segErr      error
	analysisErr error
	components  *mat.Dense
}

func (m *memorySource) Segmentation() (*file.Segmentation, error) {
	if m.segErr != nil {
		return nil, m.segErr
	}
	df := dataframe.ReadCSV(strings.NewReader(`cluster,price,duration,class_enc,departure_time_enc,stops
0,5000,2.5,0,1,0
1,50000,10,1,3,1
0,7000,3.5,0,2,0
3,4000,2,0,0,2
`))
	comps := m.components
	if comps == nil {
		comps = mat.NewDense(4, 2, []float64{0, 0, 1, 2, 2, 1, 3, 3})
	}
	return &file.Segmentation{Data: df, Components: comps}, nil
}

func (m *memorySource) Analysis() (dataframe.DataFrame, error) {
	if m.analysisErr != nil {
		return dataframe.DataFrame{}, m.analysisErr
	}
	return dataframe.ReadCSV(strings.NewReader(`airline,source_city,destination_city,departure_time,class,stops,duration,days_left,price
Indigo,Delhi,Mumbai,0,0,0,2,1,6000
Indigo,Delhi,Mumbai,1,0,0,2.5,10,5000
Vistara,Delhi,Mumbai,3,1,1,3,20,40000
Vistara,Mumbai,Delhi,3,1,1,2,5,42000
SpiceJet,Mumbai,Delhi,5,0,2,4,30,3000
`)), nil
}

func (m *memorySource) Performance() (dataframe.DataFrame, bool, error) {
	return dataframe.DataFrame{}, false, nil
}

type pinger struct {
	mu        sync.Mutex
	listeners map[chan struct{}]struct{}
}

func (p *pinger) Subscribe() chan struct{} {
	ch := make(chan struct{}, 1)
	p.mu.Lock()
	p.listeners[ch] = struct{}{}
	p.mu.Unlock()
	return ch
}

func (p *pinger) Unsubscribe(ch chan struct{}) {
	p.mu.Lock()
	delete(p.listeners, ch)
	p.mu.Unlock()
}

func (p *pinger) ping() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ch := range p.listeners {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func newTestServer(t *testing.T, src *memorySource, opts ...func(*Options)) *Server {
	t.Helper()
	o := Options{
		SessionSecret: "test-secret-key-32-bytes-long!!",
		Footer:        footer,
		Reports:       report.NewBuilder(src, config.DefaultDataConfig()),
	}
	for _, f := range opts {
		f(&o)
	}
	s, err := NewServer(o)
	require.NoError(t, err)
	return s
}

func get(t *testing.T, h http.Handler, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIndexTraveler(t *testing.T) {
	h := newTestServer(t, &memorySource{}).Handler()
	rec := get(t, h, "/")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	for _, want := range []string{
		"<!doctype html>",
		"🌍 Traveler Insights Dashboard",
		"🛫 Perspective",
		"Choose your view:",
		"data-init",
		"/events",
		"📊 Cluster Averages",
		"🔎 Sample Profiles",
		"🎨 Visual Cluster Distribution",
		"📡 Cluster Radar Profiles",
		"💰 Avg Flight Price by Stop Count",
		"<svg",
		"👑 Elite Gliders",
		"50,000.00",
		footer,
	} {
		assert.Contains(t, body, want)
	}
}

func TestIndexAnalyst(t *testing.T) {
	h := newTestServer(t, &memorySource{}).Handler()
	rec := get(t, h, "/?mode=analyst")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	for _, want := range []string{
		"📊 Airline Strategy Dashboard",
		"💸 Top Profitable Routes",
		"🕒 Departure Time vs Price",
		"🎫 Economy vs Business Pricing",
		"⏳ Price Trend by Days Left",
		"✈️ Number of Flights by Stop Count",
		"💸 Price Distribution by Airline",
		"🧭 Top 15 Most Frequent Routes",
		"Delhi → Mumbai",
	} {
		assert.Contains(t, body, want)
	}
	assert.NotContains(t, body, "Airline Performance")
}

func TestIndexRemembersMode(t *testing.T) {
	h := newTestServer(t, &memorySource{}).Handler()
	first := get(t, h, "/?mode=analyst")
	require.Equal(t, http.StatusOK, first.Code)
	cookies := first.Result().Cookies()
	require.NotEmpty(t, cookies)

	rec := get(t, h, "/", cookies...)
	assert.Contains(t, rec.Body.String(), "Airline Strategy Dashboard")

	rec = get(t, h, "/?mode=bogus", cookies...)
	assert.Contains(t, rec.Body.String(), "Airline Strategy Dashboard")
}

func TestIndexSegmentationMissing(t *testing.T) {
	h := newTestServer(t, &memorySource{segErr: file.ErrSegmentationMissing}).Handler()
	for _, target := range []string{"/", "/?mode=analyst"} {
		rec := get(t, h, target)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, segmentationMissingMsg)
		assert.NotContains(t, body, "🛫 Perspective")
		assert.NotContains(t, body, "<svg")
	}
}

func TestIndexAnalysisMissing(t *testing.T) {
	h := newTestServer(t, &memorySource{analysisErr: file.ErrAnalysisMissing}).Handler()
	rec := get(t, h, "/?mode=analyst")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, analysisMissingMsg)
	assert.Contains(t, body, "🛫 Perspective")
	assert.Contains(t, body, footer)
	assert.NotContains(t, body, "Top Profitable Routes")

	// 旅客视角不受影响
	rec = get(t, h, "/?mode=traveler")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Cluster Averages")
}

func TestIndexMalformedData(t *testing.T) {
	h := newTestServer(t, &memorySource{components: mat.NewDense(2, 2, nil)}).Handler()
	rec := get(t, h, "/")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "component shape mismatch")
}

func TestAPI(t *testing.T) {
	h := newTestServer(t, &memorySource{}).Handler()
	rec := get(t, h, "/api/analyst")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp struct {
		Mode   string `json:"mode"`
		Tables []struct {
			Title string          `json:"title"`
			Rows  [][]interface{} `json:"rows"`
		} `json:"tables"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "analyst", resp.Mode)
	require.NotEmpty(t, resp.Tables)
	assert.Equal(t, "Top Profitable Routes", resp.Tables[0].Title)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/pilot").Code)

	h = newTestServer(t, &memorySource{segErr: file.ErrSegmentationMissing}).Handler()
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/api/traveler").Code)
}

func TestExport(t *testing.T) {
	h := newTestServer(t, &memorySource{}).Handler()
	rec := get(t, h, "/export/traveler.xlsx")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "airline-traveler.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Cluster Averages", "Sample Profiles", "Avg Flight Price by Stop Count"}, f.GetSheetList())

	h = newTestServer(t, &memorySource{analysisErr: file.ErrAnalysisMissing}).Handler()
	assert.Equal(t, http.StatusNotFound, get(t, h, "/export/analyst.xlsx").Code)
}

func TestHealthz(t *testing.T) {
	rec := get(t, newTestServer(t, &memorySource{}).Handler(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestEventsReloadOnChange(t *testing.T) {
	p := &pinger{listeners: map[chan struct{}]struct{}{}}
	s := newTestServer(t, &memorySource{}, func(o *Options) { o.Changes = p })

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	ctx, cancel := context.WithTimeout(req.Context(), 300*time.Millisecond)
	defer cancel()
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		s.events(rec, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	p.ping()
	<-done

	body := rec.Body.String()
	assert.GreaterOrEqual(t, strings.Count(body, "event:"), 1)
	assert.Contains(t, body, "window.location.reload()")
}

func TestEventsWithoutChanges(t *testing.T) {
	s := newTestServer(t, &memorySource{})

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	ctx, cancel := context.WithTimeout(req.Context(), 50*time.Millisecond)
	defer cancel()
	rec := httptest.NewRecorder()
	s.events(rec, req.WithContext(ctx))

	assert.Equal(t, 0, strings.Count(rec.Body.String(), "event:"))
}

func TestLogsStream(t *testing.T) {
	logger, err := storage.NewLogger(filepath.Join(t.TempDir(), "app.log"))
	require.NoError(t, err)
	defer logger.Close()
	s := newTestServer(t, &memorySource{}, func(o *Options) { o.Logger = logger })

	req := httptest.NewRequest(http.MethodGet, "/logs", nil)
	ctx, cancel := context.WithTimeout(req.Context(), 300*time.Millisecond)
	defer cancel()
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		s.logs(rec, req.WithContext(ctx))
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	logger.Info("数据缓存已清空")
	<-done

	assert.Contains(t, rec.Body.String(), "数据缓存已清空")
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestFormatCell(t *testing.T) {
	assert.Equal(t, "38,666.67", formatCell(38666.666))
	assert.Equal(t, "51,000", formatCell(51000))
	assert.Equal(t, "", formatCell(nil))
	assert.Equal(t, "Delhi", formatCell("Delhi"))
}
