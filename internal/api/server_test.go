package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/wikirefs/internal/article"
	"github.com/dgallion1/wikirefs/internal/config"
	"github.com/dgallion1/wikirefs/internal/pipeline"
	"github.com/dgallion1/wikirefs/internal/wiki"
)

type fakeFetcher map[string]string

func (f fakeFetcher) FetchParsed(_ context.Context, title string) (*wiki.Page, error) {
	if title == "Unreachable" {
		return nil, errors.New("dial tcp: connection refused")
	}
	body, ok := f[title]
	if !ok {
		return nil, &wiki.NotFoundError{Title: title, Code: "missingtitle"}
	}
	return &wiki.Page{Title: title, RevID: 1200000000, HTML: body, Permalink: "https://en.wikipedia.org/w/index.php?oldid=1200000000"}, nil
}

func loadSample(t *testing.T) string {
	t.Helper()
	b, err := os.ReadFile("../article/testdata/sample-1.html")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return string(b)
}

func testConfig() config.Config {
	return config.Config{
		WikiAPIURL:     "https://en.wikipedia.org/w/api.php",
		WorkerCount:    1,
		MaxQueueSize:   4,
		MaxUploadBytes: 1 << 20,
		JobTTL:         time.Hour,
	}
}

func newTestServer(t *testing.T, cfg config.Config) (*Server, *pipeline.Orchestrator) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	fetcher := fakeFetcher{
		"Sandbox":   loadSample(t),
		"AC/DC":     `<p>Rock.<sup id="cite_ref-1" class="reference"><a href="#cite_note-1">[1]</a></sup></p><ol><li id="cite_note-1"><span class="reference-text">Band.</span></li></ol>`,
		"Broken":    `<p>X.<sup id="cite_ref-7" class="reference"><a href="#cite_note-7">[7]</a></sup></p>`,
		"100%_Pure": `<p>Juice.</p>`,
		"50%/50%":   `<p>Split.</p>`,
	}
	orch := pipeline.NewOrchestrator(cfg, fetcher, log)
	return NewServer(orch, wiki.NewFetchStats(time.Hour), log, cfg), orch
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != `{"status":"ok"}` {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	do(t, srv, httptest.NewRequest(http.MethodPost, "/api/scan", strings.NewReader(loadSample(t))))
	rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "wikirefs_scans_total") {
		t.Error("expected scan counter in exposition")
	}
}

func TestScan_RawBody(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	req := httptest.NewRequest(http.MethodPost, "/api/scan", strings.NewReader(loadSample(t)))
	req.Header.Set("Content-Type", "text/html")
	rec := do(t, srv, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var rep article.Report
	if err := json.NewDecoder(rec.Body).Decode(&rep); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rep.Title != "Sandbox sample" {
		t.Errorf("expected title %q, got %q", "Sandbox sample", rep.Title)
	}
	if len(rep.Statements) != 6 {
		t.Errorf("expected 6 statements, got %d", len(rep.Statements))
	}
	if len(rep.References) != 8 {
		t.Errorf("expected 8 references, got %d", len(rep.References))
	}
	ref := rep.References["cite_ref-:0_2-1"]
	if ref.Number != "2" || ref.RenderedSuffix != "b" || ref.Text != "Second Reference, issued August 7, 1934." {
		t.Errorf("unexpected reference %+v", ref)
	}
}

func TestScan_WithoutReferences(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	req := httptest.NewRequest(http.MethodPost, "/api/scan?references=false", strings.NewReader(loadSample(t)))
	rec := do(t, srv, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), `"references"`) {
		t.Errorf("expected no references key, got %s", rec.Body.String())
	}
}

func TestScan_Multipart(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "Austin.html")
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(fw, `<p>Plain statement.</p>`)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/scan", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := do(t, srv, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var rep article.Report
	if err := json.NewDecoder(rec.Body).Decode(&rep); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rep.Title != "Austin" {
		t.Errorf("expected title from filename, got %q", rep.Title)
	}
	if len(rep.Statements) != 1 || len(rep.Statements[0].Citations) != 0 {
		t.Errorf("unexpected statements %+v", rep.Statements)
	}
}

func TestScan_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"empty", "   ", http.StatusBadRequest},
		{"malformed ref id", `<p>X.<sup id="cite_ref-bogus" class="reference"><a href="#n">[1]</a></sup></p>`, http.StatusUnprocessableEntity},
		{"unresolvable ref", `<p>X.<sup id="cite_ref-4" class="reference"><a href="#cite_note-4">[4]</a></sup></p>`, http.StatusUnprocessableEntity},
		{"too large", strings.Repeat("x", 2<<20), http.StatusRequestEntityTooLarge},
	}
	srv, _ := newTestServer(t, testConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, httptest.NewRequest(http.MethodPost, "/api/scan", strings.NewReader(tt.body)))
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestAuth(t *testing.T) {
	cfg := testConfig()
	cfg.APIKey = "secret"
	srv, _ := newTestServer(t, cfg)

	rec := do(t, srv, httptest.NewRequest(http.MethodPost, "/api/scan", strings.NewReader("<p>x</p>")))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/scan", strings.NewReader("<p>x</p>"))
	req.Header.Set("Authorization", "Bearer wrong")
	if rec := do(t, srv, req); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/scan", strings.NewReader("<p>x</p>"))
	req.Header.Set("Authorization", "Bearer secret")
	if rec := do(t, srv, req); rec.Code != http.StatusOK {
		t.Errorf("expected 200 with token, got %d", rec.Code)
	}

	if rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/health", nil)); rec.Code != http.StatusOK {
		t.Errorf("expected health to stay public, got %d", rec.Code)
	}
}

func TestArticle(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/articles/Sandbox", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Title      string              `json:"title"`
		RevID      int64               `json:"revid"`
		Permalink  string              `json:"permalink"`
		Statements []article.Statement `json:"statements"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.RevID != 1200000000 || resp.Permalink == "" {
		t.Errorf("expected page metadata, got %+v", resp)
	}
	if len(resp.Statements) != 6 {
		t.Errorf("expected 6 statements, got %d", len(resp.Statements))
	}
}

func TestArticle_TitleWithSlash(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/articles/AC/DC", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"title":"AC/DC"`) {
		t.Errorf("expected title AC/DC, got %s", rec.Body.String())
	}
}

func TestArticle_EscapedTitles(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/articles/100%25_Pure", "100%_Pure"},
		{"/api/articles/AC%2FDC", "AC/DC"},
		{"/api/articles/50%25%2F50%25", "50%/50%"},
	}
	srv, _ := newTestServer(t, testConfig())
	for _, tt := range tests {
		rec := do(t, srv, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d: %s", tt.path, rec.Code, rec.Body.String())
			continue
		}
		var resp struct {
			Title string `json:"title"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Title != tt.want {
			t.Errorf("%s: expected title %q, got %q", tt.path, tt.want, resp.Title)
		}
	}
}

func TestArticle_Errors(t *testing.T) {
	tests := []struct {
		path string
		want int
	}{
		{"/api/articles/Nowhere", http.StatusNotFound},
		{"/api/articles/Unreachable", http.StatusBadGateway},
		{"/api/articles/Broken", http.StatusUnprocessableEntity},
		{"/api/articles/", http.StatusBadRequest},
	}
	srv, _ := newTestServer(t, testConfig())
	for _, tt := range tests {
		rec := do(t, srv, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.path, tt.want, rec.Code)
		}
	}
}

func TestShow(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/show?page_title=Sandbox", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("expected html, got %q", ct)
	}
	for _, want := range []string{"<h2>References</h2>", "And a new section! [3c]"} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("expected page to contain %q", want)
		}
	}

	rec = do(t, srv, httptest.NewRequest(http.MethodGet, "/show", nil))
	if rec.Code != http.StatusSeeOther {
		t.Errorf("expected redirect without title, got %d", rec.Code)
	}

	rec = do(t, srv, httptest.NewRequest(http.MethodGet, "/show?page_title=Nowhere", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for missing page, got %d", rec.Code)
	}
}

func TestIndex(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/?page_title=%3Cb%3E", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `action="/show"`) {
		t.Error("expected form posting to /show")
	}
	if strings.Contains(body, "<b>") {
		t.Error("expected prefilled title to be escaped")
	}
}

func TestJobs(t *testing.T) {
	srv, orch := newTestServer(t, testConfig())
	orch.Start(context.Background())
	defer orch.Stop()

	rec := do(t, srv, httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(`{"titles":["Sandbox"," ","Nowhere"]}`)))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var accepted struct {
		JobID   string `json:"job_id"`
		PollURL string `json:"poll_url"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&accepted); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if accepted.PollURL != "/api/jobs/"+accepted.JobID {
		t.Errorf("unexpected poll url %q", accepted.PollURL)
	}

	var snap pipeline.JobSnapshot
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec = do(t, srv, httptest.NewRequest(http.MethodGet, accepted.PollURL, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		snap = pipeline.JobSnapshot{}
		if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if snap.Status == pipeline.StatusPartial {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if snap.Status != pipeline.StatusPartial {
		t.Fatalf("expected partial status, got %q", snap.Status)
	}
	if len(snap.Titles) != 2 {
		t.Errorf("expected blank titles to be dropped, got %v", snap.Titles)
	}
	if snap.Progress.Statements != 6 {
		t.Errorf("expected 6 statements, got %d", snap.Progress.Statements)
	}
}

func TestJobs_Errors(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	tests := []struct {
		body string
		want int
	}{
		{`{"titles":[]}`, http.StatusBadRequest},
		{`not json`, http.StatusBadRequest},
		{`{"titles":["` + strings.Repeat(`a","`, maxBatchTitles) + `a"]}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := do(t, srv, httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(tt.body)))
		if rec.Code != tt.want {
			t.Errorf("body %.40q: expected %d, got %d", tt.body, tt.want, rec.Code)
		}
	}

	rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/jobs/unknown", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown job, got %d", rec.Code)
	}
}

func TestJobs_AfterStop(t *testing.T) {
	srv, orch := newTestServer(t, testConfig())
	orch.Start(context.Background())
	orch.Stop()

	rec := do(t, srv, httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(`{"titles":["Sandbox"]}`)))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestFetchStats(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/stats/fetch", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Stats      wiki.StatsSnapshot `json:"stats"`
		QueueDepth int                `json:"queue_depth"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Stats.Count != 0 {
		t.Errorf("expected empty stats, got %+v", resp.Stats)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"../../etc/passwd", "passwd"},
		{"article.html", "article.html"},
		{"", "unnamed"},
		{`a\..\b.html`, `a___b.html`},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}
