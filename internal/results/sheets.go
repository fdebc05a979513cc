package results

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/quizbot/core/telegram/format"
	"github.com/m3rciful/quizbot/internal/quiz"
)

// DefaultSheetsEndpoint is the Google Sheets REST base URL.
const DefaultSheetsEndpoint = "https://sheets.googleapis.com"

// SheetsConfig configures the spreadsheet append sink.
type SheetsConfig struct {
	SpreadsheetID string `yaml:"spreadsheet_id" envconfig:"RESULTS_SHEETS_ID"`
	Range         string `yaml:"range" envconfig:"RESULTS_SHEETS_RANGE"`
	Token         string `yaml:"token" envconfig:"RESULTS_SHEETS_TOKEN"`
	Endpoint      string `yaml:"endpoint" envconfig:"RESULTS_SHEETS_ENDPOINT"`
}

// Enabled reports whether a spreadsheet id is set.
func (c SheetsConfig) Enabled() bool { return strings.TrimSpace(c.SpreadsheetID) != "" }

// Normalize fills defaults and checks the token.
func (c *SheetsConfig) Normalize() error {
	c.SpreadsheetID = strings.TrimSpace(c.SpreadsheetID)
	if c.Range == "" {
		c.Range = "Results!A1"
	}
	c.Endpoint = strings.TrimRight(strings.TrimSpace(c.Endpoint), "/")
	if c.Endpoint == "" {
		c.Endpoint = DefaultSheetsEndpoint
	}
	if c.Enabled() && c.Token == "" {
		return errors.New("results.sheets: token is required")
	}
	return nil
}

// SheetsSink appends one row per result.
type SheetsSink struct {
	cfg    SheetsConfig
	client *http.Client
}

// NewSheetsSink builds the sink.
func NewSheetsSink(cfg SheetsConfig, client *http.Client) *SheetsSink {
	if client == nil {
		client = http.DefaultClient
	}
	return &SheetsSink{cfg: cfg, client: client}
}

// Name implements Sink.
func (s *SheetsSink) Name() string { return "sheets" }

func (s *SheetsSink) appendURL() string {
	return s.cfg.Endpoint + "/v4/spreadsheets/" + url.PathEscape(s.cfg.SpreadsheetID) +
		"/values/" + url.PathEscape(s.cfg.Range) + ":append?valueInputOption=USER_ENTERED"
}

// Row is the spreadsheet row written for r.
func Row(r *quiz.Result) []any {
	return []any{
		r.FinishedAt.UTC().Format(time.RFC3339),
		r.Team,
		r.Score,
		r.Total,
		format.Clock(time.Duration(r.ElapsedSeconds) * time.Second),
		r.PenaltySeconds,
		format.Clock(time.Duration(r.TotalSeconds) * time.Second),
		r.HintsUsed,
		strconv.FormatInt(r.ChatID, 10),
		r.RunID,
	}
}

// Deliver implements Sink.
func (s *SheetsSink) Deliver(ctx context.Context, r *quiz.Result) error {
	payload, err := json.Marshal(map[string]any{"values": [][]any{Row(r)}})
	if err != nil {
		return fmt.Errorf("sheets: encode row: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.appendURL(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("sheets: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.Token)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sheets: append: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return checkResponse(s.Name(), resp, body)
}
