package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"dosh/internal/actions"
	"dosh/internal/core"
	"dosh/internal/log"
	"dosh/internal/present"
	"dosh/internal/storage"
)

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("database is locked") }

func quietLogger() *log.Logger {
	return log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

// newTestServer builds a server over a fresh store holding two transactions.
func newTestServer(t *testing.T) (*Server, map[string]int64) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "dosh.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	ids := map[string]int64{}
	for _, tx := range []core.Transaction{
		{Date: "2011-01-05", Description: "TESCO GROCERIES", Amount: core.Money{Cents: -2550}, Category: "Food:Groceries", Account: "HSBC", NeedsWants: core.Needs},
		{Date: "2011-02-02", Description: "CINEMA <3D>", Amount: core.Money{Cents: -1200}, Category: "Entertainment", Account: "Egg", NeedsWants: core.Wants},
	} {
		id, err := repo.Insert(context.Background(), tx)
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
		ids[tx.Description] = id
	}

	renderer, err := present.NewRenderer(present.DefaultCurrency)
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}
	logger := quietLogger()
	d := actions.NewDispatcher(repo, renderer, actions.Config{Logger: logger})
	srv := NewServer(":0", d, repo, logger)
	t.Cleanup(func() { srv.rateLimiter.stop() })
	return srv, ids
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestIndexAndHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"<title>dosh</title>", `<option value="HSBC">HSBC</option>`, "Previous month"} {
		if !strings.Contains(body, want) {
			t.Errorf("index body missing %q", want)
		}
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := serve(srv, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", path, rr.Code, rr.Body.String())
		}
	}

	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/no-such-page", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown page status=%d", rr.Code)
	}
}

func TestReadyReportsStoreFailure(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.store = failingPinger{}

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	var payload struct {
		Status string         `json:"status"`
		Checks map[string]any `json:"checks"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Status != "not_ready" {
		t.Errorf("status = %q", payload.Status)
	}
	if !strings.Contains(payload.Checks["store"].(string), "database is locked") {
		t.Errorf("store check = %v", payload.Checks["store"])
	}
}

func TestStaticAssets(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/static/dosh.js", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("static status=%d", rr.Code)
	}
	if cc := rr.Header().Get("Cache-Control"); !strings.Contains(cc, "max-age=3600") {
		t.Errorf("Cache-Control = %q", cc)
	}
}

func TestAPIListActions(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/api/get_accounts", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != `["Egg","HSBC"]` {
		t.Errorf("accounts body = %s", got)
	}

	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/api?action=get_categories", nil))
	if got := strings.TrimSpace(rr.Body.String()); got != `["Entertainment","Food:Groceries"]` {
		t.Errorf("categories body = %s", got)
	}
	if ct := rr.Header().Get("Content-Type"); ct != contentTypeJSON {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestAPIUnknownAction(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{"/api/drop_table", "/api?action=__import__", "/api"} {
		rr := serve(srv, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusNotFound {
			t.Errorf("%s: status=%d", path, rr.Code)
		}
		if got := strings.TrimSpace(rr.Body.String()); got != `{"ERROR":"Unknown action"}` {
			t.Errorf("%s: body=%s", path, got)
		}
	}
}

func TestAPIMutationsRequirePOST(t *testing.T) {
	srv, ids := newTestServer(t)
	id := strconv.FormatInt(ids["CINEMA <3D>"], 10)

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/api/update_category?id="+id+"&category=Fun", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
	if allow := rr.Header().Get("Allow"); allow != "POST" {
		t.Errorf("Allow = %q", allow)
	}

	rr = serve(srv, httptest.NewRequest(http.MethodDelete, "/api/delete_transaction?id="+id, nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for DELETE, got %d", rr.Code)
	}

	rr = serve(srv, postForm("/api/update_category", url.Values{"id": {id}, "category": {"Fun:Films"}}))
	if rr.Code != http.StatusOK {
		t.Fatalf("update status=%d", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != "1" {
		t.Errorf("update body = %s, want 1", got)
	}

	rr = serve(srv, postForm("/api/update_category", url.Values{"id": {"abc"}, "category": {"Fun"}}))
	if got := strings.TrimSpace(rr.Body.String()); got != `{"ERROR":"Invalid id"}` {
		t.Errorf("invalid id body = %s", got)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/delete_transaction", strings.NewReader(`{"id": `+id+`}`))
	req.Header.Set("Content-Type", "application/json")
	rr = serve(srv, req)
	if got := strings.TrimSpace(rr.Body.String()); got != "1" {
		t.Errorf("delete body = %s, want 1", got)
	}

	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/api/get_single_transaction?id="+id, nil))
	if got := strings.TrimSpace(rr.Body.String()); got != "null" {
		t.Errorf("deleted transaction body = %s, want null", got)
	}
}

func TestAPITransactionsTableIsEscapedHTML(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/api/get_transactions_table?modifiers="+url.QueryEscape(core.AllTransactions), nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != contentTypeHTML {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rr.Body.String()
	if strings.Contains(body, "<3D>") || !strings.Contains(body, "CINEMA &lt;3D&gt;") {
		t.Errorf("description not escaped: %s", body)
	}
	if !strings.Contains(body, "-£25.50") {
		t.Errorf("amount missing: %s", body)
	}
}

func TestAPIPageJSON(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := serve(srv, postForm("/api/get_transactions_page_json", url.Values{"results": {"1"}, "startIndex": {"0"}}))
	var page present.PagePayload
	if err := json.Unmarshal(rr.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v (%s)", err, rr.Body.String())
	}
	if page.TotalRecords != 2 || page.RecordsReturned != 1 || page.PageSize != 1 {
		t.Errorf("page = %+v", page)
	}
	if page.Records[0].Description != "CINEMA <3D>" {
		t.Errorf("first record = %q", page.Records[0].Description)
	}
	if page.Records[0].Amount.Cents != -1200 {
		t.Errorf("amount = %d", page.Records[0].Amount.Cents)
	}
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy", "Referrer-Policy"} {
		if rr.Header().Get(h) == "" {
			t.Errorf("missing header %s", h)
		}
	}
	if rr.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must not be sent over plain HTTP")
	}
	if rr.Header().Get(requestIDHeader) == "" {
		t.Error("missing request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "6f1c1a52-54f4-4d7c-9a3b-0f3a8f3f2b11")
	rr = serve(srv, req)
	if got := rr.Header().Get(requestIDHeader); got != "6f1c1a52-54f4-4d7c-9a3b-0f3a8f3f2b11" {
		t.Errorf("request id = %q, want the incoming one", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "<script>")
	rr = serve(srv, req)
	if got := rr.Header().Get(requestIDHeader); got == "<script>" {
		t.Error("malformed request id must be replaced")
	}
}

func TestPostRateLimit(t *testing.T) {
	srv, _ := newTestServer(t)

	var last int
	for i := 0; i <= rateLimitRequests; i++ {
		rr := serve(srv, postForm("/api/search", url.Values{"text": {"tesco"}}))
		last = rr.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after %d POSTs, got %d", rateLimitRequests+1, last)
	}

	// reads are never limited
	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/api/search?text=tesco", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("GET after limit status=%d", rr.Code)
	}
}
