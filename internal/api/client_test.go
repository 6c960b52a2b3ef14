package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domerrors "github.com/coursematch/coursematch-web/internal/errors"
	"github.com/coursematch/coursematch-web/internal/metrics"
)

func newTestClient(t *testing.T, baseURL string, mutate ...func(*Options)) *Client {
	t.Helper()
	opts := Options{
		BaseURL:    baseURL,
		Timeout:    2 * time.Second,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	c, err := NewClient(opts)
	require.NoError(t, err)
	return c
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "/relative", "://bad"} {
		_, err := NewClient(Options{BaseURL: raw})
		assert.Error(t, err, raw)
	}
}

func TestMatchCourseCode(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/match/courseCode", r.URL.Path)
		assert.Equal(t, "CS-A1110", r.URL.Query().Get("courseCode"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[{"code":"CS-A1110","name":"Programming 1","credits":5,"period":"I-II","language":"en","desc":"Basics","mycoursesLink":"https://mycourses.example/1","sisuLink":"https://sisu.example/1"}]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL+"/v1/", func(o *Options) { o.AccessToken = "secret" })
	courses, err := c.MatchCourseCode(context.Background(), "CS-A1110")
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "Programming 1", courses[0].Name)
	assert.Equal(t, Credits("5"), courses[0].Credits)
	assert.Equal(t, "Basics", courses[0].Description)
	assert.Equal(t, "https://sisu.example/1", courses[0].SisuLink)
}

func TestMatchText_NoTokenHeader(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Equal(t, "robot arms", r.URL.Query().Get("queryText"))
		_, _ = w.Write([]byte(`null`))
	}))
	defer srv.Close()

	courses, err := newTestClient(t, srv.URL).MatchText(context.Background(), "robot arms")
	require.NoError(t, err)
	assert.NotNil(t, courses)
	assert.Empty(t, courses)
}

func TestGet_RetriesServerErrors(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	m := metrics.New(prometheus.NewRegistry())
	c := newTestClient(t, srv.URL, func(o *Options) { o.Metrics = m })

	_, err := c.MatchText(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.InDelta(t, 2, testutil.ToFloat64(m.APIRetriesTotal.WithLabelValues(OpMatchText)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.APIRequestsTotal.WithLabelValues(OpMatchText, "success")), 0)
}

func TestGet_ClientErrorNotRetried(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "bad query", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).MatchCourseCode(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	var apiErr *domerrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, domerrors.KindGeneric, Classify(err))
}

func TestGet_MalformedBody(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).MatchText(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, domerrors.KindGeneric, Classify(err))
}

func TestUnreachableIsUnavailable(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := newTestClient(t, url, func(o *Options) { o.MaxRetries = 0 })

	_, err := c.MatchText(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, domerrors.KindUnavailable, Classify(err))

	err = c.SendFeedback(context.Background(), Feedback{QueryText: "x", Label: LabelLike})
	require.Error(t, err)
	assert.Equal(t, domerrors.KindUnavailable, Classify(err))

	assert.Error(t, c.Ping(context.Background()))
}

func TestSendFeedback(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	var got Feedback
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/feedback", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	fb := Feedback{QueryText: "robot", MatchText: "Robotics basics", MatchCode: "ELEC-1", Label: LabelDislike}
	require.NoError(t, c.SendFeedback(context.Background(), fb))
	assert.Equal(t, fb, got)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSendFeedback_NeverRetried(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := newTestClient(t, srv.URL).SendFeedback(context.Background(), Feedback{Label: LabelLike})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestListCourses_SharedAndCached(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		<-release
		_, _ = w.Write([]byte(`[{"code":"CS-A1110","name":"Programming 1"}]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	var wg sync.WaitGroup
	results := make([][]CourseAlias, 5)
	for i := range results {
		wg.Go(func() {
			aliases, err := c.ListCourses(context.Background())
			assert.NoError(t, err)
			results[i] = aliases
		})
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, []CourseAlias{{Code: "CS-A1110", Name: "Programming 1"}}, r)
	}

	_, err := c.ListCourses(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestListCourses_DeduplicatesCodes(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[
			{"code":"CS-A1110","name":"Programming 1"},
			{"code":"CS-A1120","name":"Programming 2"},
			{"code":"CS-A1110","name":"Programming 1 (summer)"}
		]`))
	}))
	defer srv.Close()

	aliases, err := newTestClient(t, srv.URL).ListCourses(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []CourseAlias{
		{Code: "CS-A1110", Name: "Programming 1"},
		{Code: "CS-A1120", Name: "Programming 2"},
	}, aliases)
}

func TestPing(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	assert.NoError(t, newTestClient(t, srv.URL).Ping(context.Background()))
}

func TestCredits_UnmarshalJSON(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want Credits
	}{
		{`5`, "5"},
		{`2.5`, "2.5"},
		{`"3-5"`, "3-5"},
		{`null`, ""},
	}
	for _, tt := range tests {
		var c Credits
		require.NoError(t, json.Unmarshal([]byte(tt.raw), &c), tt.raw)
		assert.Equal(t, tt.want, c, tt.raw)
	}

	var c Credits
	assert.Error(t, json.Unmarshal([]byte(`true`), &c))
}
