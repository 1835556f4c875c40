package redcap

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mricases/internal/config"
	"github.com/roach88/mricases/internal/testutil"
)

func defaultRequest() ExportRequest {
	q := config.Default().Query
	return ExportRequest{Fields: q.Fields, Forms: q.Forms, Events: q.Events}
}

func newTestClient(url, token string) *Client {
	cfg := config.Default().REDCap
	cfg.URL = url
	cfg.Timeout = 5 * time.Second
	return NewClient(cfg, token)
}

func TestExportRecords_SendsFixedQuery(t *testing.T) {
	fake := testutil.NewFakeREDCap(t, "secret", testutil.ExampleRows())
	client := newTestClient(fake.URL(), "secret")

	_, err := client.ExportRecords(context.Background(), defaultRequest())
	require.NoError(t, err)

	reqs := fake.Requests()
	require.Len(t, reqs, 1, "exactly one export call")
	form := reqs[0]

	assert.Equal(t, "secret", form.Get("token"))
	assert.Equal(t, "record", form.Get("content"))
	assert.Equal(t, "json", form.Get("format"))
	assert.Equal(t, "flat", form.Get("type"))
	assert.Equal(t, "raw", form.Get("rawOrCategory"))

	assert.Equal(t, "study_id", form.Get("fields[0]"))
	assert.Equal(t, "exclude", form.Get("fields[1]"))
	assert.Equal(t, "visit_ignore___yes", form.Get("fields[2]"))
	assert.Equal(t, "mri_missing", form.Get("fields[3]"))
	assert.Equal(t, "mr_session_report", form.Get("forms[0]"))
	assert.Equal(t, "visit_date", form.Get("forms[1]"))
	assert.Equal(t, "demographics", form.Get("forms[2]"))
	assert.Equal(t, "baseline_visit_arm_1", form.Get("events[0]"))
	assert.Equal(t, "1y_visit_arm_1", form.Get("events[1]"))
	assert.Empty(t, form.Get("events[2]"))
}

func TestExportRecords_PreservesOrderAndValues(t *testing.T) {
	rows := testutil.ExampleRows()
	rows = append(rows,
		testutil.SessionRow("E", "baseline_visit_arm_1", json.Number("1.0"), nil, 0, "NCANDA_S00005", ""))
	fake := testutil.NewFakeREDCap(t, "secret", rows)
	client := newTestClient(fake.URL(), "secret")

	records, err := client.ExportRecords(context.Background(), defaultRequest())
	require.NoError(t, err)
	require.Len(t, records, 5)

	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r["study_id"]
	}
	assert.Equal(t, []string{"A", "B", "C", "D", "E"}, ids)

	last := records[4]
	assert.Equal(t, "1.0", last["exclude"], "numbers keep their literal text")
	assert.Equal(t, "", last["visit_ignore___yes"], "null becomes a blank cell")
	assert.Equal(t, "0", last["mri_missing"])
	assert.Equal(t, "NCANDA_S00005", last["mri_xnat_sid"])
}

func TestExportRecords_EmptyResult(t *testing.T) {
	fake := testutil.NewFakeREDCap(t, "secret", nil)
	client := newTestClient(fake.URL(), "secret")

	records, err := client.ExportRecords(context.Background(), defaultRequest())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestExportRecords_BadToken(t *testing.T) {
	fake := testutil.NewFakeREDCap(t, "secret", testutil.ExampleRows())
	client := newTestClient(fake.URL(), "wrong")

	_, err := client.ExportRecords(context.Background(), defaultRequest())
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "You do not have permissions to use the API", apiErr.Message)
	assert.Len(t, fake.Requests(), 1, "no retry")
}

func TestExportRecords_ServerErrorRawBody(t *testing.T) {
	fake := testutil.NewFakeREDCap(t, "secret", nil)
	fake.FailWith(http.StatusBadGateway, "upstream unavailable\n")
	client := newTestClient(fake.URL(), "secret")

	_, err := client.ExportRecords(context.Background(), defaultRequest())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream unavailable", apiErr.Message)
	assert.Contains(t, err.Error(), "HTTP 502")
}

func TestExportRecords_ErrorDocumentOnSuccessStatus(t *testing.T) {
	fake := testutil.NewFakeREDCap(t, "secret", nil)
	fake.FailWith(http.StatusOK, `{"error":"The following values in the parameter \"events\" are not valid"}`)
	client := newTestClient(fake.URL(), "secret")

	_, err := client.ExportRecords(context.Background(), defaultRequest())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusOK, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "events")
}

func TestExportRecords_MalformedBody(t *testing.T) {
	fake := testutil.NewFakeREDCap(t, "secret", nil)
	fake.FailWith(http.StatusOK, "[{not json")
	client := newTestClient(fake.URL(), "secret")

	_, err := client.ExportRecords(context.Background(), defaultRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode records")
}

func TestExportRecords_MissingToken(t *testing.T) {
	client := &Client{URL: "http://127.0.0.1:1/"}
	_, err := client.ExportRecords(context.Background(), defaultRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing API token")
}

func TestExportRecords_TransportError(t *testing.T) {
	fake := testutil.NewFakeREDCap(t, "secret", nil)
	url := fake.URL()
	fake.Server.Close()

	client := newTestClient(url, "secret")
	_, err := client.ExportRecords(context.Background(), defaultRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export records")
}

func TestNewClient_VerifiesCertificatesByDefault(t *testing.T) {
	fake := testutil.NewFakeREDCapTLS(t, "secret", testutil.ExampleRows())
	client := newTestClient(fake.URL(), "secret")

	_, err := client.ExportRecords(context.Background(), defaultRequest())
	require.Error(t, err, "self-signed certificate must be rejected")
	assert.Empty(t, fake.Requests())
}

func TestNewClient_InsecureSkipVerify(t *testing.T) {
	fake := testutil.NewFakeREDCapTLS(t, "secret", testutil.ExampleRows())
	cfg := config.Default().REDCap
	cfg.URL = fake.URL()
	cfg.InsecureSkipVerify = true
	client := NewClient(cfg, "secret")

	records, err := client.ExportRecords(context.Background(), defaultRequest())
	require.NoError(t, err)
	assert.Len(t, records, 4)
}

func TestNewClient_Timeout(t *testing.T) {
	cfg := config.Default().REDCap
	cfg.Timeout = 7 * time.Second
	client := NewClient(cfg, "tok")
	assert.Equal(t, 7*time.Second, client.HTTP.Timeout)
	assert.Equal(t, config.DefaultURL, client.URL)
}
