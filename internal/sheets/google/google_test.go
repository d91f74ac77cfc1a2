package google

import (
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

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"dosh/internal/core"
	"dosh/internal/log"
)

func quietLogger() *log.Logger {
	return log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

type fakeSheets struct {
	mu       sync.Mutex
	calls    []string
	written  gsheet.ValueRange
	failWith int
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)

	if f.failWith != 0 {
		w.WriteHeader(f.failWith)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"forbidden"}}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, ":clear"):
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-id"}`))
	case r.Method == http.MethodPut:
		if got := r.URL.Query().Get("valueInputOption"); got != "USER_ENTERED" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&f.written)
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-id"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Config{
		SpreadsheetID: "sheet-id",
		SheetName:     "Dosh Export",
		Options: []goption.ClientOption{
			goption.WithEndpoint(srv.URL + "/"),
			goption.WithoutAuthentication(),
		},
	}, quietLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestExport(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)

	n, err := c.Export(context.Background(), []core.Transaction{
		{Date: "2011-01-05", Description: "TESCO", Amount: core.Money{Cents: -2550}, Category: "Food", Account: "HSBC", NeedsWants: core.Needs},
		{Date: "2011-01-06", Description: "=HYPERLINK(\"x\")", Amount: core.Money{Cents: 100}, Category: "Unknown", Account: "HSBC", NeedsWants: core.Unknown},
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if n != 2 {
		t.Errorf("Export returned %d, want 2", n)
	}

	if len(fake.calls) != 2 {
		t.Fatalf("calls = %v, want clear then update", fake.calls)
	}
	if !strings.HasPrefix(fake.calls[0], "POST ") || !strings.HasSuffix(fake.calls[0], "'Dosh Export':clear") {
		t.Errorf("first call = %q", fake.calls[0])
	}
	if !strings.HasPrefix(fake.calls[1], "PUT ") || !strings.HasSuffix(fake.calls[1], "'Dosh Export'!A1") {
		t.Errorf("second call = %q", fake.calls[1])
	}

	rows := fake.written.Values
	if len(rows) != 3 {
		t.Fatalf("rows written = %d, want 3", len(rows))
	}
	if rows[0][0] != "Date" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][2] != "-25.50" {
		t.Errorf("amount cell = %v, want -25.50 unquoted", rows[1][2])
	}
	if rows[2][1] != `'=HYPERLINK("x")` {
		t.Errorf("formula-like description not quoted: %v", rows[2][1])
	}
}

func TestExportAPIError(t *testing.T) {
	fake := &fakeSheets{failWith: http.StatusForbidden}
	c := newTestClient(t, fake)

	if _, err := c.Export(context.Background(), nil); err == nil {
		t.Fatal("expected error from a failing API")
	}
	if len(fake.calls) != 1 {
		t.Errorf("update must not run after a failed clear, calls = %v", fake.calls)
	}
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{}, quietLogger())
	if err == nil || err.Error() != "missing spreadsheet id" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "id"}, quietLogger())
	if err == nil || !strings.Contains(err.Error(), "missing credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_InvalidOAuthClient(t *testing.T) {
	dir := t.TempDir()
	clientFile := filepath.Join(dir, "client.json")
	tokenFile := filepath.Join(dir, "token.json")
	if err := os.WriteFile(clientFile, []byte("invalid-json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(tokenFile, []byte(`{"access_token":"test"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := New(context.Background(), Config{
		SpreadsheetID:   "id",
		OAuthClientFile: clientFile,
		OAuthTokenFile:  tokenFile,
	}, quietLogger())
	if err == nil || !strings.Contains(err.Error(), "oauth config") {
		t.Fatalf("expected oauth config error, got: %v", err)
	}
}

func TestNew_OAuthToken(t *testing.T) {
	dir := t.TempDir()
	clientFile := filepath.Join(dir, "client.json")
	tokenFile := filepath.Join(dir, "token.json")
	client := `{"installed":{"client_id":"id","client_secret":"secret","auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token","redirect_uris":["http://localhost:8085/callback"]}}`
	if err := os.WriteFile(clientFile, []byte(client), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(tokenFile, []byte(`{"access_token":"test","token_type":"Bearer"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := New(context.Background(), Config{
		SpreadsheetID:   "id",
		OAuthClientFile: clientFile,
		OAuthTokenFile:  tokenFile,
	}, quietLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.sheetName != DefaultSheetName {
		t.Errorf("sheetName = %q", c.sheetName)
	}
}

func TestQuoteSheetName(t *testing.T) {
	if got := quoteSheetName("Bob's"); got != "'Bob''s'" {
		t.Errorf("quoteSheetName = %q", got)
	}
}
