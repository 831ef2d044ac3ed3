package api_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koba/tabledef/internal/api"
	"github.com/koba/tabledef/internal/errs"
	"github.com/koba/tabledef/internal/metadata"
	"github.com/koba/tabledef/internal/query"
	"github.com/koba/tabledef/internal/schema"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

type fakeQuerier struct {
	got    query.Window
	result *query.Result
	err    error
}

func (f *fakeQuerier) SelectWindow(_ context.Context, w query.Window) (*query.Result, error) {
	f.got = w
	return f.result, f.err
}

func newServer(t *testing.T, q api.Querier, logs io.Writer) *httptest.Server {
	t.Helper()

	reg, err := schema.Parse([]byte(`{"events": {"time": {"type": "time"}, "value": {}}}`))
	require.NoError(t, err)

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector())

	server := httptest.NewServer(api.New(q, metadata.Render(reg), promReg, zerolog.New(logs)))
	t.Cleanup(server.Close)

	return server
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(body)
}

func TestGetWindow(t *testing.T) {
	q := &fakeQuerier{result: &query.Result{
		Fields: []string{"time", "value"},
		Rows:   [][]interface{}{{2, 1.5}, {3, 2.5}},
	}}
	server := newServer(t, q, io.Discard)

	status, body := get(t, server.URL+"/api/omni/?from=2&to=4&fields=time,value")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"data": [[2, 1.5], [3, 2.5]], "fields": ["time", "value"]}`, body)

	from := time.Unix(2, 0).UTC()
	to := time.Unix(4, 0).UTC()
	want := query.Window{From: &from, To: &to, Fields: []string{"time", "value"}}
	if diff := cmp.Diff(want, q.got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestGetWindowWithoutBounds(t *testing.T) {
	q := &fakeQuerier{result: &query.Result{Fields: []string{"time"}, Rows: [][]interface{}{}}}
	server := newServer(t, q, io.Discard)

	status, body := get(t, server.URL+"/api/omni/")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"data": [], "fields": ["time"]}`, body)
	assert.Nil(t, q.got.From)
	assert.Nil(t, q.got.To)
	assert.Nil(t, q.got.Fields)
}

func TestGetWindowErrors(t *testing.T) {
	testCases := []struct {
		name   string
		path   string
		err    error
		expect int
	}{
		{
			name:   "malformed bound",
			path:   "/api/omni/?from=yesterday",
			expect: http.StatusBadRequest,
		},
		{
			name:   "unknown field",
			path:   "/api/omni/?fields=bogus",
			err:    errs.E(errs.InvalidRequest, errs.Op("query.SelectWindow"), "unknown field"),
			expect: http.StatusBadRequest,
		},
		{
			name:   "store failure",
			path:   "/api/omni/",
			err:    errs.E(errs.Store, errs.Op("query.SelectWindow"), errors.New("connection refused")),
			expect: http.StatusInternalServerError,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := newServer(t, &fakeQuerier{err: tc.err}, io.Discard)

			status, body := get(t, server.URL+tc.path)
			assert.Equal(t, tc.expect, status)
			assert.JSONEq(t, `{}`, body)
		})
	}
}

func TestGetInfo(t *testing.T) {
	server := newServer(t, &fakeQuerier{}, io.Discard)

	status, body := get(t, server.URL+"/api/omni/info")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, `{"events":{"time":{"name":"time","type":"time"},"value":{"name":"value","type":"real"}}}`, body)
}

func TestMetrics(t *testing.T) {
	server := newServer(t, &fakeQuerier{}, io.Discard)

	status, body := get(t, server.URL+"/internal/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "go_goroutines")
}

func TestRequestLogger(t *testing.T) {
	logs := &syncBuffer{}
	server := newServer(t, &fakeQuerier{}, logs)

	get(t, server.URL+"/api/omni/info")
	get(t, server.URL+"/internal/metrics")

	lines := strings.Split(strings.TrimSpace(logs.String()), "\n")
	require.Len(t, lines, 1)

	var entry struct {
		Message string `json:"message"`
		URL     string `json:"url"`
		Status  int    `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "incoming_request", entry.Message)
	assert.Equal(t, "/api/omni/info", entry.URL)
	assert.Equal(t, http.StatusOK, entry.Status)
}

func TestRequestLoggerWindow(t *testing.T) {
	logs := &syncBuffer{}
	q := &fakeQuerier{result: &query.Result{Fields: []string{"time"}, Rows: [][]interface{}{}}}
	server := newServer(t, q, logs)

	status, _ := get(t, server.URL+"/api/omni/?from=10&to=20&fields=time,value")
	require.Equal(t, http.StatusOK, status)

	lines := strings.Split(strings.TrimSpace(logs.String()), "\n")
	require.Len(t, lines, 1)

	var entry struct {
		RequestID string   `json:"request_id"`
		Status    int      `json:"status"`
		From      string   `json:"from"`
		To        string   `json:"to"`
		Fields    []string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.NotEmpty(t, entry.RequestID)
	assert.Equal(t, http.StatusOK, entry.Status)
	assert.Equal(t, time.Unix(10, 0).UTC().Format(time.RFC3339), entry.From)
	assert.Equal(t, time.Unix(20, 0).UTC().Format(time.RFC3339), entry.To)
	assert.Equal(t, []string{"time", "value"}, entry.Fields)
}
