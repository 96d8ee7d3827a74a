// Package tushare implements the TuShare Pro market-data client.
// ⭐ SSOT: 외부 시세 데이터는 이 패키지를 통해서만 조회
package tushare

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/futsync/internal/domain"
	"github.com/wonny/futsync/pkg/config"
	"github.com/wonny/futsync/pkg/httputil"
	"github.com/wonny/futsync/pkg/logger"
)

// Client talks to the TuShare Pro JSON-RPC style endpoint. Every call is
// admitted by the shared sliding-window limiter attached to the HTTP
// client, and additionally smoothed so requests spread across the window
// instead of bursting at its start.
type Client struct {
	http      *httputil.Client
	token     string
	baseURL   string
	exchanges []string
	smoother  *rate.Limiter
	log       *logger.Logger
	now       func() time.Time
}

// NewClient creates a TuShare client. The passed HTTP client should
// already carry the hard rate limiter.
func NewClient(cfg config.TuShareConfig, httpClient *httputil.Client, log *logger.Logger) *Client {
	// An unvalidated config must not take the divisor to zero.
	interval := time.Second
	if cfg.MaxCalls > 0 && cfg.Window > 0 {
		interval = cfg.Window / time.Duration(cfg.MaxCalls)
	}

	return &Client{
		http:      httpClient,
		token:     cfg.Token,
		baseURL:   cfg.BaseURL,
		exchanges: cfg.Exchanges,
		smoother:  rate.NewLimiter(rate.Every(interval), 1),
		log:       log.WithField("module", "tushare"),
		now:       time.Now,
	}
}

// apiRequest is the TuShare Pro request envelope.
type apiRequest struct {
	APIName string            `json:"api_name"`
	Token   string            `json:"token"`
	Params  map[string]string `json:"params"`
	Fields  string            `json:"fields"`
}

// apiResponse is the TuShare Pro response envelope.
type apiResponse struct {
	Code int      `json:"code"`
	Msg  string   `json:"msg"`
	Data *apiData `json:"data"`
}

type apiData struct {
	Fields []string        `json:"fields"`
	Items  [][]interface{} `json:"items"`
}

// table is a parsed tabular response with column lookup by field name.
type table struct {
	index map[string]int
	rows  [][]interface{}
}

func (t *table) len() int { return len(t.rows) }

// str returns the string value of the named column, or "" when the cell
// is null or the column is absent.
func (t *table) str(row int, field string) string {
	col, ok := t.index[field]
	if !ok || col >= len(t.rows[row]) {
		return ""
	}
	if s, ok := t.rows[row][col].(string); ok {
		return s
	}
	return ""
}

// float returns the numeric value of the named column, or nil when the
// cell is null, absent, or not coercible. Providers occasionally send
// numbers as strings.
func (t *table) float(row int, field string) *float64 {
	col, ok := t.index[field]
	if !ok || col >= len(t.rows[row]) {
		return nil
	}
	switch v := t.rows[row][col].(type) {
	case float64:
		return &v
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

// call issues one provider request and parses the tabular payload.
// An empty payload is a valid outcome and returns an empty table.
func (c *Client) call(ctx context.Context, apiName string, params map[string]string, fields string) (*table, error) {
	if c.token == "" {
		return nil, domain.NewConfigError("TUSHARE_TOKEN is not set", nil)
	}

	if err := c.smoother.Wait(ctx); err != nil {
		return nil, err
	}

	req := apiRequest{
		APIName: apiName,
		Token:   c.token,
		Params:  params,
		Fields:  fields,
	}

	start := time.Now()
	resp, err := c.http.PostJSON(ctx, c.baseURL, req)
	if err != nil {
		return nil, domain.NewTransientError(fmt.Sprintf("%s request failed", apiName), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, domain.NewTransientError(
			fmt.Sprintf("%s returned HTTP %d: %s", apiName, resp.StatusCode, string(body)), nil)
	}

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, domain.NewTransientError(fmt.Sprintf("%s response decode failed", apiName), err)
	}

	if envelope.Code != 0 {
		return nil, domain.NewTransientError(
			fmt.Sprintf("%s provider error %d: %s", apiName, envelope.Code, envelope.Msg), nil)
	}

	c.log.WithFields(map[string]interface{}{
		"api":      apiName,
		"rows":     rowCount(envelope.Data),
		"duration": time.Since(start),
	}).Debug("Provider call completed")

	tbl := &table{index: map[string]int{}}
	if envelope.Data != nil {
		for i, f := range envelope.Data.Fields {
			tbl.index[f] = i
		}
		tbl.rows = envelope.Data.Items
	}
	return tbl, nil
}

func rowCount(d *apiData) int {
	if d == nil {
		return 0
	}
	return len(d.Items)
}

// parseDate parses the provider's YYYYMMDD date format.
func parseDate(s string) (time.Time, bool) {
	t, err := time.Parse("20060102", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// formatDate renders a date in the provider's YYYYMMDD format.
func formatDate(t time.Time) string {
	return t.Format("20060102")
}
