// Package redcap is a minimal client for the REDCap record export API.
package redcap

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/mricases/internal/config"
)

// maxErrorBody caps how much of a failed response is read for the error message.
const maxErrorBody = 64 << 10

// Record is one exported row in REDCap's flat format, keyed by field name.
// Every value is the raw (unlabelled) text REDCap returned; blank cells are "".
type Record map[string]string

// ExportRequest selects what ExportRecords asks for.
type ExportRequest struct {
	Fields []string
	Forms  []string
	Events []string
}

// Client talks to a single REDCap project.
type Client struct {
	URL   string
	Token string
	HTTP  *http.Client
}

// NewClient builds a client for the project at cfg.URL. Certificate
// verification follows cfg.InsecureSkipVerify.
func NewClient(cfg config.REDCap, token string) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // explicit opt-in only
	}
	if cfg.InsecureSkipVerify {
		slog.Warn("TLS certificate verification disabled", slog.String("url", cfg.URL))
	}

	return &Client{
		URL:   cfg.URL,
		Token: token,
		HTTP: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
	}
}

// APIError is returned when REDCap answers with a non-success status or an
// error document.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("redcap: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("redcap: HTTP %d: %s", e.StatusCode, e.Message)
}

// ExportRecords runs one record export and returns the rows in the order
// REDCap sent them. There is no retry; any failure is returned as is.
func (c *Client) ExportRecords(ctx context.Context, req ExportRequest) ([]Record, error) {
	if c.Token == "" {
		return nil, fmt.Errorf("redcap: missing API token")
	}
	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.DefaultTimeout}
	}

	form := exportForm(c.Token, req)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("redcap: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")

	slog.Debug("exporting records",
		slog.String("url", c.URL),
		slog.Int("fields", len(req.Fields)),
		slog.Int("forms", len(req.Forms)),
		slog.Any("events", req.Events))

	start := time.Now()
	res, err := httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("redcap: export records: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return nil, &APIError{StatusCode: res.StatusCode, Message: errorMessage(body)}
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("redcap: read response: %w", err)
	}
	records, err := decodeRecords(res.StatusCode, body)
	if err != nil {
		return nil, err
	}

	slog.Debug("records exported",
		slog.Int("count", len(records)),
		slog.Duration("elapsed", time.Since(start)))
	return records, nil
}

// exportForm builds the form body for a flat, raw JSON record export.
func exportForm(token string, req ExportRequest) url.Values {
	form := url.Values{}
	form.Set("token", token)
	form.Set("content", "record")
	form.Set("format", "json")
	form.Set("type", "flat")
	form.Set("rawOrCategory", "raw")
	form.Set("rawOrCategoryFieldNames", "raw")
	form.Set("exportCheckboxLabel", "false")
	form.Set("returnFormat", "json")
	addList(form, "fields", req.Fields)
	addList(form, "forms", req.Forms)
	addList(form, "events", req.Events)
	return form
}

func addList(form url.Values, name string, values []string) {
	for i, v := range values {
		form.Set(name+"["+strconv.Itoa(i)+"]", v)
	}
}

// decodeRecords parses an export response. REDCap reports some failures as a
// JSON object with an "error" key even on success statuses.
func decodeRecords(status int, body []byte) ([]Record, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return nil, &APIError{StatusCode: status, Message: errorMessage(trimmed)}
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var rows []map[string]any
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("redcap: decode records: %w", err)
	}

	records := make([]Record, len(rows))
	for i, row := range rows {
		rec := make(Record, len(row))
		for k, v := range row {
			rec[k] = cellText(v)
		}
		records[i] = rec
	}
	return records, nil
}

func cellText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		if val {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprint(val)
	}
}

// errorMessage extracts REDCap's {"error": "..."} text, falling back to the
// raw body.
func errorMessage(body []byte) string {
	var doc struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &doc); err == nil && doc.Error != "" {
		return doc.Error
	}
	return strings.TrimSpace(string(body))
}
