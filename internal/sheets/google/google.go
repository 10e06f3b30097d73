package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"carlog/internal/cache"
	"carlog/internal/core"
	ports "carlog/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const (
	defaultSheetName = "Records"
	defaultCacheTTL  = 60 * time.Second
)

// Config holds the settings of a Sheets-backed record store.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
	CacheTTL        time.Duration
}

// valuesAPI is the subset of the Sheets values service the store needs.
type valuesAPI interface {
	Get(ctx context.Context, rng string) ([][]any, error)
	Update(ctx context.Context, rng string, values [][]any) error
}

// Client is a record store backed by one worksheet of a spreadsheet.
type Client struct {
	api       valuesAPI
	sheetName string
	cache     *cache.LRUCache[[]core.Record]
	logger    *slog.Logger

	mu      sync.Mutex
	dialect ports.Dialect
	report  ports.DecodeReport
}

// Ensure interface conformance
var (
	_ ports.RecordStore = (*Client)(nil)
	_ ports.Reporter    = (*Client)(nil)
)

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Auth: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
// Optional: GOOGLE_SHEET_NAME (default "Records"), SHEETS_CACHE_TTL.
func NewFromEnv(ctx context.Context) (*Client, error) {
	cfg := Config{
		SpreadsheetID:   strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID")),
		SheetName:       strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME")),
		CredentialsJSON: strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")),
		CredentialsFile: strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE")),
	}
	if cfg.CredentialsJSON == "" && cfg.CredentialsFile == "" {
		cfg.CredentialsFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if v := strings.TrimSpace(os.Getenv("SHEETS_CACHE_TTL")); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SHEETS_CACHE_TTL: %w", err)
		}
		cfg.CacheTTL = ttl
	}
	return New(ctx, cfg)
}

// New creates a Sheets client from explicit settings.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(&serviceValues{svc: svc, spreadsheetID: cfg.SpreadsheetID}, cfg), nil
}

func newClient(api valuesAPI, cfg Config) *Client {
	name := cfg.SheetName
	if name == "" {
		name = defaultSheetName
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Client{
		api:       api,
		sheetName: name,
		cache:     cache.NewLRUCache[[]core.Record](4, ttl),
		logger:    slog.Default().With("component", "sheets"),
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	var credentialsJSON []byte
	switch {
	case cfg.CredentialsJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(cfg.CredentialsJSON)
	case cfg.CredentialsFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", cfg.CredentialsFile)
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created successfully")
	return service, nil
}

// Load reads the whole worksheet. Results are cached until the TTL expires
// or the next Save.
func (c *Client) Load(ctx context.Context) ([]core.Record, error) {
	if records, ok := c.cache.Get(c.sheetName); ok {
		return core.Clone(records), nil
	}

	rng := fmt.Sprintf("%s!A:H", c.sheetName)
	values, err := c.api.Get(ctx, rng)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}

	records, rep := ports.DecodeRows(values)
	rep.Log(ctx, c.logger)
	if rep.HeaderMismatch() {
		c.logger.ErrorContext(ctx, "Sheet header mismatch",
			"sheet", c.sheetName,
			"expected", strings.Join(ports.CanonicalHeader, ","),
			"got", rep.Issues[0].Value)
	}

	c.mu.Lock()
	c.report = rep
	if !rep.HeaderMismatch() {
		c.dialect = rep.Dialect
	}
	c.mu.Unlock()

	c.cache.Set(c.sheetName, records)
	c.logger.DebugContext(ctx, "Sheet loaded", "sheet", c.sheetName, "records", len(records), "issues", len(rep.Issues))
	return core.Clone(records), nil
}

// Save writes the header and every record in the dialect observed at the
// last Load. The sheet is overwritten by a single update, padded with blank
// rows over whatever the previous set occupied, so a failed write leaves the
// previous content in place.
func (c *Client) Save(ctx context.Context, records []core.Record) error {
	c.mu.Lock()
	dialect := c.dialect
	c.mu.Unlock()

	c.cache.Delete(c.sheetName)

	rng := fmt.Sprintf("%s!A:H", c.sheetName)
	current, err := c.api.Get(ctx, rng)
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}

	rows := ports.EncodeRows(records, dialect)
	for len(rows) < len(current) {
		rows = append(rows, blankRow())
	}
	start := fmt.Sprintf("%s!A1", c.sheetName)
	if err := c.api.Update(ctx, start, rows); err != nil {
		return fmt.Errorf("update %s: %w", start, err)
	}
	c.logger.InfoContext(ctx, "Sheet saved", "sheet", c.sheetName, "records", len(records),
		"cleared_rows", len(rows)-len(records)-1, "dialect", dialect.String())
	return nil
}

func blankRow() []any {
	row := make([]any, len(ports.CanonicalHeader))
	for i := range row {
		row[i] = ""
	}
	return row
}

// LastReport returns the decode report of the most recent uncached Load.
func (c *Client) LastReport() ports.DecodeReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.report
}

// CleanExpired drops an expired cached read; see cache.Manager.
func (c *Client) CleanExpired() int {
	return c.cache.CleanExpired()
}

// serviceValues adapts *gsheet.Service to valuesAPI.
type serviceValues struct {
	svc           *gsheet.Service
	spreadsheetID string
}

func (s *serviceValues) Get(ctx context.Context, rng string) ([][]any, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (s *serviceValues) Update(ctx context.Context, rng string, values [][]any) error {
	vr := &gsheet.ValueRange{Values: values}
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	return err
}
