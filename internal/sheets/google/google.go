package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"dosh/internal/core"
	"dosh/internal/log"
	ports "dosh/internal/sheets"
)

// DefaultSheetName is used when Config.SheetName is empty.
const DefaultSheetName = "Transactions"

// amountColumn is the index of the amount in an exported row.
const amountColumn = 2

// Config selects the spreadsheet and how to authenticate. Service account
// credentials win over an OAuth client and token pair.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
	OAuthClientFile string
	OAuthTokenFile  string

	// Options replace credential handling entirely.
	Options []goption.ClientOption
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

var _ ports.Exporter = (*Client)(nil)

// New creates a Sheets client for cfg.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheetName := strings.TrimSpace(cfg.SheetName)
	if sheetName == "" {
		sheetName = DefaultSheetName
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentSheets)

	opts := cfg.Options
	if len(opts) == 0 {
		var err error
		opts, err = clientOptions(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	logger.Debug("Google Sheets service created", "sheet", sheetName)

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger,
	}, nil
}

func clientOptions(ctx context.Context, cfg Config, logger *log.Logger) ([]goption.ClientOption, error) {
	credsJSON := strings.TrimSpace(cfg.CredentialsJSON)
	credsFile := strings.TrimSpace(cfg.CredentialsFile)

	switch {
	case credsJSON != "":
		logger.Debug("Using inline service account credentials", "json_length", len(credsJSON))
		return []goption.ClientOption{
			goption.WithCredentialsJSON([]byte(credsJSON)),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}, nil
	case credsFile != "":
		b, err := os.ReadFile(credsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		logger.Debug("Using service account credentials file", "path", credsFile)
		return []goption.ClientOption{
			goption.WithCredentialsJSON(b),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}, nil
	case cfg.OAuthClientFile != "" && cfg.OAuthTokenFile != "":
		client, err := oauthClient(ctx, cfg.OAuthClientFile, cfg.OAuthTokenFile)
		if err != nil {
			return nil, err
		}
		logger.Debug("Using OAuth token", "path", cfg.OAuthTokenFile)
		return []goption.ClientOption{goption.WithHTTPClient(client)}, nil
	default:
		return nil, errors.New("missing credentials (set a service account JSON or file, or an OAuth client and token file)")
	}
}

// oauthClient builds an HTTP client that refreshes the saved token as needed.
func oauthClient(ctx context.Context, clientFile, tokenFile string) (*http.Client, error) {
	b, err := os.ReadFile(clientFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth client file: %w", err)
	}
	cfg, err := googleoauth.ConfigFromJSON(b, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}

	tb, err := os.ReadFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(tb, &tok); err != nil {
		return nil, fmt.Errorf("decode oauth token: %w", err)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	return cfg.Client(ctx, &tok), nil
}

// newHTTPClientWithPooling creates an HTTP client for the Sheets API with
// connection pooling and bounded timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// Export clears the sheet and writes a header row followed by txs.
func (c *Client) Export(ctx context.Context, txs []core.Transaction) (int, error) {
	start := time.Now()
	sheet := quoteSheetName(c.sheetName)

	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, sheet, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return 0, fmt.Errorf("clear sheet %s: %w", c.sheetName, err)
	}

	values := make([][]interface{}, 0, len(txs)+1)
	values = append(values, toInterfaces(ports.Header))
	for _, tx := range txs {
		values = append(values, toInterfaces(ports.Row(tx)))
	}

	vr := &gsheet.ValueRange{Values: values}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, sheet+"!A1", vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
		return 0, fmt.Errorf("update sheet %s: %w", c.sheetName, err)
	}

	c.logger.InfoContext(ctx, "Transactions exported",
		log.FieldOperation, log.OpExport,
		log.FieldCount, len(txs),
		"sheet", c.sheetName,
		log.FieldDuration, time.Since(start).Milliseconds())
	return len(txs), nil
}

// toInterfaces converts a row for the API. Text that Sheets would read as a
// formula is prefixed with a quote; the amount column stays numeric.
func toInterfaces(row []string) []interface{} {
	out := make([]interface{}, len(row))
	for i, v := range row {
		if i != amountColumn && v != "" && strings.ContainsRune("=+-@", rune(v[0])) {
			v = "'" + v
		}
		out[i] = v
	}
	return out
}

// quoteSheetName quotes a sheet name for use in A1 notation.
func quoteSheetName(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
