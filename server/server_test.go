package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/carrousel/batch"
	"github.com/hazyhaar/carrousel/carousel"
	"github.com/hazyhaar/carrousel/compose"
	"github.com/hazyhaar/carrousel/dbopen"
	"github.com/hazyhaar/carrousel/modules"
	"github.com/hazyhaar/carrousel/render"
	"github.com/hazyhaar/carrousel/renderlog"
)

const carouselJSON = `{
  "slides": [
    {"numero": 1, "estilo": "title", "titulo": "Go em produção",
     "destaques": [{"campo": "titulo", "texto": "Go"}]},
    {"numero": 2, "estilo": "text-only", "texto_1": "Concorrência simples",
     "destaques": [{"campo": "texto_1", "texto": "simples", "estilo": "italico"}]}
  ]
}`

// fakeRenderer fails the job indexes listed in fail and keeps the last
// canvas document.
type fakeRenderer struct {
	mu     sync.Mutex
	fail   map[int]bool
	canvas *compose.Document
}

func (f *fakeRenderer) RenderSingle(_ context.Context, index int, _ *compose.Document) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[index] {
		return nil, &render.CaptureError{Index: index, Clip: -1, Err: io.ErrUnexpectedEOF}
	}
	return []byte("png"), nil
}

func (f *fakeRenderer) RenderCarousel(_ context.Context, _ int, doc *compose.Document) ([][]byte, error) {
	f.mu.Lock()
	f.canvas = doc
	f.mu.Unlock()
	out := make([][]byte, len(doc.Geometry.Clips))
	for i := range out {
		out[i] = []byte("png")
	}
	return out, nil
}

type fixture struct {
	srv      *Server
	handler  http.Handler
	out      string
	renderer *fakeRenderer
}

func newFixture(t *testing.T, history *renderlog.Store) *fixture {
	t.Helper()
	reg := modules.Default()
	composer := compose.New(reg)
	builder := carousel.NewBuilder(reg, composer)
	out := t.TempDir()
	fr := &fakeRenderer{fail: map[int]bool{}}

	bopts := []batch.Option{batch.WithCarouselBuilder(builder)}
	sopts := []Option{WithHealth(func() bool { return false })}
	if history != nil {
		bopts = append(bopts, batch.WithRecorder(history))
		sopts = append(sopts, WithHistory(history))
	}
	orch := batch.New(batch.Config{OutputDir: out, PublicBaseURL: "/output"}, fr, builder, bopts...)

	srv := New(Config{OutputDir: out, StaticOutput: true}, reg, composer, builder, orch, sopts...)
	return &fixture{srv: srv, handler: srv.Routes(), out: out, renderer: fr}
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, "GET", "/health", "")
	if rec.Code != 200 {
		t.Fatalf("status %d", rec.Code)
	}
	var resp map[string]string
	decode(t, rec, &resp)
	if resp["status"] != "ok" || resp["browser"] != "idle" {
		t.Fatalf("got %v", resp)
	}
	if rec.Header().Get("X-Trace-ID") == "" || rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("headers %v", rec.Header())
	}
}

func TestHealth_Head(t *testing.T) {
	f := newFixture(t, nil)
	if rec := f.do(t, "HEAD", "/health", ""); rec.Code != 200 {
		t.Fatalf("HEAD status %d", rec.Code)
	}
}

func TestModules(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, "GET", "/api/modules", "")
	var resp ModulesResponse
	decode(t, rec, &resp)
	if len(resp.Modules) != len(modules.Builtins()) {
		t.Fatalf("got %d modules", len(resp.Modules))
	}
	if resp.Modules[0].ID != modules.CanvasID {
		t.Fatalf("first module %q", resp.Modules[0].ID)
	}
	if !strings.Contains(strings.Join(resp.Styles, ","), carousel.StyleTextOnly) {
		t.Fatalf("styles %v", resp.Styles)
	}
}

func TestCompose_Legacy(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, "POST", "/api/compose",
		`{"enabledModules":["canvas","text"],"moduleData":{"text":{"title":"Olá"}}}`)
	if rec.Code != 200 {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	var doc compose.Document
	decode(t, rec, &doc)
	if doc.CanvasWidth != 1080 || !strings.Contains(doc.HTML, `data-module="text"`) || len(doc.Diagnostics) != 0 {
		t.Fatalf("doc %+v", doc)
	}
}

func TestCompose_BadRequests(t *testing.T) {
	// WHAT: Malformed JSON and empty requests are 400.
	// WHY: Nothing was composed; the caller must fix the payload.
	f := newFixture(t, nil)
	for _, body := range []string{`{`, `{}`} {
		if rec := f.do(t, "POST", "/api/compose", body); rec.Code != 400 {
			t.Errorf("%s: status %d", body, rec.Code)
		}
	}
}

func TestRenderBatch(t *testing.T) {
	// WHAT: Per-job failures still answer 200; a missing layout list is 400.
	// WHY: Batch outcomes are reported per slide, not as request failure.
	f := newFixture(t, nil)
	if rec := f.do(t, "POST", "/api/render/batch", `{}`); rec.Code != 400 {
		t.Fatalf("missing layouts: status %d", rec.Code)
	}

	layouts := []carousel.TemplateLayout{
		{SlideNumber: 1, StyleKind: carousel.StyleTextOnly, Filename: "a.png", Texts: []string{"um"}},
		{SlideNumber: 2, StyleKind: carousel.StyleTextOnly, Filename: "b.png", Texts: []string{"dois"}},
	}
	body, _ := json.Marshal(map[string]any{"layouts": layouts})
	f.renderer.fail[1] = true

	rec := f.do(t, "POST", "/api/render/batch", string(body))
	if rec.Code != 200 {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	var res batch.Result
	decode(t, rec, &res)
	if res.Summary.Total != 2 || res.Summary.Successful != 1 || res.Summary.Failed != 1 {
		t.Fatalf("summary %+v", res.Summary)
	}
	if !res.Results[0].Success || res.Results[0].URL != "/output/a.png" || res.Results[1].Success {
		t.Fatalf("results %+v", res.Results)
	}
}

func TestTransform(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, "POST", "/api/carousel/transform?highlight_color=%23ff0000", carouselJSON)
	if rec.Code != 200 {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	var resp TransformResponse
	decode(t, rec, &resp)
	if resp.Count != 2 || resp.Format != carousel.FormatInline {
		t.Fatalf("got %+v", resp)
	}
	if resp.Layouts[0].HighlightColor != "#ff0000" || resp.Layouts[1].Filename != "slide_02.png" {
		t.Fatalf("layouts %+v", resp.Layouts)
	}
	if len(resp.Transcripts) != 2 || !strings.Contains(resp.Transcripts[1], "*simples*") {
		t.Fatalf("transcripts %q", resp.Transcripts)
	}
}

func TestTransform_FieldErrors(t *testing.T) {
	// WHAT: Invalid input is 400 with the offending field paths.
	// WHY: Callers fix their document from the reported paths.
	f := newFixture(t, nil)
	rec := f.do(t, "POST", "/api/carousel/transform",
		`{"slides":[{"numero":1,"estilo":"nope","texto_1":"x"}]}`)
	if rec.Code != 400 {
		t.Fatalf("status %d", rec.Code)
	}
	var resp struct {
		Error  string                `json:"error"`
		Fields []carousel.FieldError `json:"fields"`
	}
	decode(t, rec, &resp)
	if resp.Error == "" || len(resp.Fields) == 0 || resp.Fields[0].Path != "slides[0].estilo" {
		t.Fatalf("got %+v", resp)
	}
}

func TestCarouselRender(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, "POST", "/api/carousel/render", carouselJSON)
	if rec.Code != 200 {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	var resp RenderResponse
	decode(t, rec, &resp)
	if resp.Result == nil || resp.Summary.Successful != 2 || len(resp.Layouts) != 2 {
		t.Fatalf("got %s", rec.Body)
	}
	if _, err := os.Stat(filepath.Join(f.out, "slide_01.png")); err != nil {
		t.Fatal(err)
	}

	// Generated images are served from the output directory.
	img := f.do(t, "GET", "/output/slide_01.png", "")
	if img.Code != 200 || img.Body.String() != "png" {
		t.Fatalf("static: %d %q", img.Code, img.Body)
	}
}

func TestCarouselRender_CanvasMode(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, "POST", "/api/carousel/render?mode=canvas", carouselJSON)
	var resp RenderResponse
	decode(t, rec, &resp)
	if rec.Code != 200 || resp.Summary.Successful != 2 {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}

	if rec := f.do(t, "POST", "/api/carousel/render?mode=bogus", carouselJSON); rec.Code != 400 {
		t.Fatalf("unknown mode: status %d", rec.Code)
	}
}

func TestCarouselRender_CanvasOverlayEnvelope(t *testing.T) {
	// WHAT: The HTTP render endpoint takes the {data, overlay} envelope and
	// draws the floating overlay on the shared canvas.
	// WHY: Without it only MCP callers could place an overlay.
	f := newFixture(t, nil)
	body := `{"data":` + carouselJSON + `,"mode":"canvas","overlay":{"enabled":true,"text":"arraste","scale":100}}`
	rec := f.do(t, "POST", "/api/carousel/render", body)
	var resp RenderResponse
	decode(t, rec, &resp)
	if rec.Code != 200 || resp.Summary.Successful != 2 {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	if f.renderer.canvas == nil || !strings.Contains(f.renderer.canvas.HTML, `class="floating-overlay"`) {
		t.Fatal("overlay missing from canvas document")
	}

	// The query string still selects the mode for an envelope body.
	f.renderer.canvas = nil
	rec = f.do(t, "POST", "/api/carousel/render?mode=canvas", `{"data":`+carouselJSON+`}`)
	if rec.Code != 200 || f.renderer.canvas == nil {
		t.Fatalf("query mode: status %d: %s", rec.Code, rec.Body)
	}
	if strings.Contains(f.renderer.canvas.HTML, `class="floating-overlay"`) {
		t.Fatal("overlay drawn without being requested")
	}
}

func TestHistory(t *testing.T) {
	store, err := renderlog.New(dbopen.OpenMemory(t))
	if err != nil {
		t.Fatal(err)
	}
	f := newFixture(t, store)
	rec := f.do(t, "POST", "/api/carousel/render", carouselJSON)
	var resp RenderResponse
	decode(t, rec, &resp)

	var list []batch.Result
	decode(t, f.do(t, "GET", "/api/batches", ""), &list)
	if len(list) != 1 || list[0].BatchID != resp.BatchID {
		t.Fatalf("list %+v", list)
	}

	got := f.do(t, "GET", "/api/batches/"+resp.BatchID, "")
	var one batch.Result
	decode(t, got, &one)
	if got.Code != 200 || len(one.Results) != 2 {
		t.Fatalf("batch %d %+v", got.Code, one)
	}
	if rec := f.do(t, "GET", "/api/batches/bat_missing", ""); rec.Code != 404 {
		t.Fatalf("missing: status %d", rec.Code)
	}
}

func TestHistory_DisabledWithoutStore(t *testing.T) {
	f := newFixture(t, nil)
	if rec := f.do(t, "GET", "/api/batches", ""); rec.Code != 404 {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestMaxBody(t *testing.T) {
	reg := modules.Default()
	composer := compose.New(reg)
	builder := carousel.NewBuilder(reg, composer)
	orch := batch.New(batch.Config{OutputDir: t.TempDir()}, &fakeRenderer{}, builder)
	srv := New(Config{MaxBody: 16}, reg, composer, builder, orch)

	req := httptest.NewRequest("POST", "/api/carousel/transform", bytes.NewReader([]byte(carouselJSON)))
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	if rec.Code != 400 {
		t.Fatalf("status %d", rec.Code)
	}
}

// --- MCP ---

func mcpSession(t *testing.T, srv *Server) *mcp.ClientSession {
	t.Helper()
	impl := &mcp.Implementation{Name: "carrousel-test", Version: "0.1.0"}
	ms := mcp.NewServer(impl, nil)
	srv.RegisterMCP(ms)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = ms.Run(ctx, serverT) }()

	session, err := mcp.NewClient(impl, nil).Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func callTool(t *testing.T, s *mcp.ClientSession, name string, args any) *mcp.CallToolResult {
	t.Helper()
	res, err := s.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	return res
}

func TestMCP_Tools(t *testing.T) {
	f := newFixture(t, nil)
	session := mcpSession(t, f.srv)

	var data map[string]any
	if err := json.Unmarshal([]byte(carouselJSON), &data); err != nil {
		t.Fatal(err)
	}

	res := callTool(t, session, "carousel_transform", map[string]any{"data": data, "highlight_bg": "#000000"})
	if res.IsError {
		t.Fatalf("transform: %+v", res.Content)
	}
	var tr TransformResponse
	if err := json.Unmarshal([]byte(res.Content[0].(*mcp.TextContent).Text), &tr); err != nil {
		t.Fatal(err)
	}
	if tr.Count != 2 || tr.Layouts[0].HighlightBackground != "#000000" {
		t.Fatalf("got %+v", tr)
	}

	res = callTool(t, session, "carousel_render", map[string]any{"data": data})
	if res.IsError || !strings.Contains(res.Content[0].(*mcp.TextContent).Text, `"successful":2`) {
		t.Fatalf("render: %+v", res.Content)
	}

	res = callTool(t, session, "carousel_modules", map[string]any{})
	if res.IsError || !strings.Contains(res.Content[0].(*mcp.TextContent).Text, `"id":"canvas"`) {
		t.Fatalf("modules: %+v", res.Content)
	}
}

func TestMCP_CallsAreTraced(t *testing.T) {
	f := newFixture(t, nil)
	var buf bytes.Buffer
	f.srv.logger = slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	session := mcpSession(t, f.srv)

	if res := callTool(t, session, "carousel_modules", map[string]any{}); res.IsError {
		t.Fatalf("modules: %+v", res.Content)
	}
	var entry map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var m map[string]any
		if json.Unmarshal([]byte(line), &m) == nil && m["tool"] == "carousel_modules" {
			entry = m
		}
	}
	if entry == nil {
		t.Fatalf("no tool log line in %s", buf.String())
	}
	if entry["transport"] != "mcp" || entry["trace_id"] == "" || entry["trace_id"] == nil {
		t.Fatalf("got %v", entry)
	}
}

func TestMCP_TransformInvalid(t *testing.T) {
	f := newFixture(t, nil)
	session := mcpSession(t, f.srv)
	res := callTool(t, session, "carousel_transform", map[string]any{
		"data": map[string]any{"slides": []any{map[string]any{"estilo": "nope", "texto_1": "x"}}},
	})
	if !res.IsError {
		t.Fatal("expected tool error")
	}
	last := res.Content[len(res.Content)-1].(*mcp.TextContent).Text
	if !strings.Contains(last, "slides[0].estilo") {
		t.Fatalf("payload %s", last)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	db := dbopen.OpenMemory(t)
	m, err := renderlog.NewMetrics(db, 100, time.Hour, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()
	m.ObserveRender("ready", 120*time.Millisecond, true)
	m.Flush()

	reg := modules.Default()
	composer := compose.New(reg)
	builder := carousel.NewBuilder(reg, composer)
	orch := batch.New(batch.Config{OutputDir: t.TempDir()}, &fakeRenderer{}, builder)
	srv := New(Config{}, reg, composer, builder, orch, WithMetrics(m))

	req := httptest.NewRequest("GET", "/api/metrics?name=render_ready_ms", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	var list []renderlog.Metric
	decode(t, rec, &list)
	if rec.Code != 200 || len(list) != 1 || list[0].Value != 120 {
		t.Fatalf("%d %+v", rec.Code, list)
	}
}
