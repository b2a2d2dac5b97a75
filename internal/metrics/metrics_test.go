package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	r := NewRecorder()

	r.Fetched("cs", 120)
	r.Fetched("cs", 5)
	r.FetchFailed("math")
	r.Scored(4, 1, 2)
	r.Written(3, 1)
	r.UserFailed()
	r.RunFinished(12.5, 1715760000)

	require.InDelta(t, 125, testutil.ToFloat64(r.PapersFetched.WithLabelValues("cs")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(r.FetchFailures.WithLabelValues("math")), 0)
	require.InDelta(t, 4, testutil.ToFloat64(r.Batches), 0)
	require.InDelta(t, 1, testutil.ToFloat64(r.FailedBatches), 0)
	require.InDelta(t, 2, testutil.ToFloat64(r.Hallucinations), 0)
	require.InDelta(t, 3, testutil.ToFloat64(r.ResultsWritten), 0)
	require.InDelta(t, 1, testutil.ToFloat64(r.WriteFailures), 0)
	require.InDelta(t, 1, testutil.ToFloat64(r.UserFailures), 0)
	require.InDelta(t, 12.5, testutil.ToFloat64(r.RunDuration), 0)
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	r.Fetched("cs", 1)
	r.FetchFailed("cs")
	r.Scored(1, 1, 1)
	r.Written(1, 1)
	r.UserFailed()
	r.RunFinished(1, 1)
	require.Nil(t, r.Registry())
	require.NoError(t, NewPusher("", "job").Push(context.Background(), r))
}

func TestPusherPush(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
		body   string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		raw, _ := io.ReadAll(req.Body)
		mu.Lock()
		method, path, body = req.Method, req.URL.Path, string(raw)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	r := NewRecorder()
	r.Written(2, 0)

	require.NoError(t, NewPusher(server.URL, "arxiv_digest").Push(context.Background(), r))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, http.MethodPut, method)
	require.Equal(t, "/metrics/job/arxiv_digest", path)
	require.NotEmpty(t, body)
}

func TestPusherPushError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	err := NewPusher(server.URL, "arxiv_digest").Push(context.Background(), NewRecorder())
	require.Error(t, err)
	require.True(t, strings.HasPrefix(err.Error(), "push metrics"))
}
