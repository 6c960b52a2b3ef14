package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursematch/coursematch-web/internal/api"
	"github.com/coursematch/coursematch-web/internal/debounce"
	domerrors "github.com/coursematch/coursematch-web/internal/errors"
	"github.com/coursematch/coursematch-web/internal/metrics"
)

type fakeMatcher struct {
	mu        sync.Mutex
	codeCalls []string
	textCalls []string
	matchCode func(code string) ([]api.Course, error)
	matchText func(text string) ([]api.Course, error)
	aliasErr  error
}

func (m *fakeMatcher) MatchCourseCode(_ context.Context, code string) ([]api.Course, error) {
	m.mu.Lock()
	m.codeCalls = append(m.codeCalls, code)
	fn := m.matchCode
	m.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(code)
}

func (m *fakeMatcher) MatchText(_ context.Context, text string) ([]api.Course, error) {
	m.mu.Lock()
	m.textCalls = append(m.textCalls, text)
	fn := m.matchText
	m.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(text)
}

func (m *fakeMatcher) ListCourses(context.Context) ([]api.CourseAlias, error) {
	if m.aliasErr != nil {
		return nil, m.aliasErr
	}
	return []api.CourseAlias{{Code: "ROB-1", Name: "Robotics"}}, nil
}

func (m *fakeMatcher) texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.textCalls...)
}

type failure struct {
	key string
	err error
}

type fakeReporter struct {
	mu       sync.Mutex
	failures []failure
}

func (r *fakeReporter) Fail(_ context.Context, key string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, failure{key: key, err: err})
}

func (r *fakeReporter) all() []failure {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]failure(nil), r.failures...)
}

type manualScheduler struct {
	mu  sync.Mutex
	fns []func()
}

type noopTimer struct{}

func (noopTimer) Stop() bool { return true }

func (s *manualScheduler) AfterFunc(_ time.Duration, f func()) debounce.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fns = append(s.fns, f)
	return noopTimer{}
}

func (s *manualScheduler) fireAll() {
	s.mu.Lock()
	fns := s.fns
	s.fns = nil
	s.mu.Unlock()
	for _, f := range fns {
		f()
	}
}

func robotCourses(n int) []api.Course {
	out := make([]api.Course, n)
	for i := range out {
		out[i] = api.Course{
			Code:     fmt.Sprintf("ROB-%d", i+1),
			Name:     fmt.Sprintf("Robotics %d", i+1),
			Language: "en",
			Period:   "I-II",
		}
	}
	return out
}

type harness struct {
	flow    *Flow
	matcher *fakeMatcher
	errs    *fakeReporter
	sched   *manualScheduler
	metrics *metrics.Metrics
}

func newHarness(t *testing.T, matcher *fakeMatcher) *harness {
	t.Helper()
	h := &harness{
		matcher: matcher,
		errs:    &fakeReporter{},
		sched:   &manualScheduler{},
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	h.flow = NewFlow(context.Background(), matcher, h.errs, Options{
		Debounce:        500 * time.Millisecond,
		DebounceOptions: []debounce.Option{debounce.WithAfterFunc(h.sched.AfterFunc)},
		Metrics:         h.metrics,
	})
	t.Cleanup(h.flow.Close)
	h.flow.Wait()
	return h
}

// typeText sends each prefix of text as a keystroke.
func (h *harness) typeText(text string) {
	for i := 1; i <= len(text); i++ {
		h.flow.SetQueryText(text[:i])
	}
}

func (h *harness) settle() {
	h.sched.fireAll()
	h.flow.Wait()
}

func TestFlow_InitialState(t *testing.T) {
	h := newHarness(t, &fakeMatcher{})

	v := h.flow.Snapshot()
	assert.Equal(t, ModeCode, v.Mode)
	assert.Equal(t, StateNoMatches, v.State)
	assert.Equal(t, 1, v.Page)
	assert.Equal(t, []api.CourseAlias{{Code: "ROB-1", Name: "Robotics"}}, v.Aliases)
	assert.Empty(t, h.errs.all())
}

func TestFlow_TextSearchPaginates(t *testing.T) {
	matcher := &fakeMatcher{matchText: func(string) ([]api.Course, error) { return robotCourses(7), nil }}
	h := newHarness(t, matcher)

	h.flow.SetMode(ModeText)
	h.typeText("robot")

	v := h.flow.Snapshot()
	assert.Equal(t, StateLoading, v.State)
	assert.Equal(t, "robot", v.QueryText, "raw text is stored before the call fires")

	h.settle()

	v = h.flow.Snapshot()
	require.Equal(t, StateResults, v.State)
	assert.Len(t, v.Items, 5)
	assert.Equal(t, 2, v.TotalPages)
	assert.Equal(t, []int{1, 2}, v.Pages())
	assert.True(t, v.HasNext())
	assert.Equal(t, "robot", v.ResultQuery)

	require.NoError(t, h.flow.SetPage(2))
	v = h.flow.Snapshot()
	require.Len(t, v.Items, 2)
	assert.Equal(t, "ROB-6", v.Items[0].Course.Code)
	assert.Equal(t, 5, v.Items[0].Index)
	assert.Equal(t, "ROB-7", v.Items[1].Course.Code)
	assert.False(t, v.HasNext())
	assert.True(t, v.HasPrev())
}

func TestFlow_NumberedKeystrokesDropLateArrivals(t *testing.T) {
	matcher := &fakeMatcher{}
	h := newHarness(t, matcher)
	h.flow.SetMode(ModeText)
	assert.Equal(t, uint64(1), h.flow.Snapshot().NextInputSeq)

	assert.True(t, h.flow.SetQueryTextSeq(2, "robot"))
	assert.False(t, h.flow.SetQueryTextSeq(1, "robo"), "older keystroke arrived late")
	assert.False(t, h.flow.SetQueryTextSeq(2, "robots"), "repeated number")

	v := h.flow.Snapshot()
	assert.Equal(t, "robot", v.QueryText)
	assert.Equal(t, uint64(3), v.NextInputSeq)

	h.settle()
	assert.Equal(t, []string{"robot"}, matcher.texts())

	h.flow.Reset()
	assert.Equal(t, uint64(3), h.flow.Snapshot().NextInputSeq, "numbering survives a reset")
}

func TestFlow_DebouncedBurstSendsOneCall(t *testing.T) {
	matcher := &fakeMatcher{}
	h := newHarness(t, matcher)

	h.flow.SetMode(ModeText)
	h.typeText("machine learning")
	h.settle()

	assert.Equal(t, []string{"machine learning"}, matcher.texts())
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.DebounceTotal.WithLabelValues("fired")), 0)
	assert.InDelta(t, float64(len("machine learning")-1),
		testutil.ToFloat64(h.metrics.DebounceTotal.WithLabelValues("coalesced")), 0)
}

func TestFlow_LanguageFilterWithoutMatches(t *testing.T) {
	matcher := &fakeMatcher{matchText: func(string) ([]api.Course, error) { return robotCourses(7), nil }}
	h := newHarness(t, matcher)

	h.flow.SetMode(ModeText)
	h.flow.SetQueryText("robot")
	h.settle()

	require.NoError(t, h.flow.ToggleLanguage("fi"))
	v := h.flow.Snapshot()
	assert.Equal(t, StateNoFilteredResults, v.State)
	assert.Equal(t, 7, v.ResultCount)
	assert.Equal(t, 0, v.FilteredCount)
	assert.True(t, v.Filters.HasLanguage("fi"))
}

func TestFlow_FilterToggleResetsPage(t *testing.T) {
	matcher := &fakeMatcher{matchText: func(string) ([]api.Course, error) { return robotCourses(7), nil }}
	h := newHarness(t, matcher)

	h.flow.SetQueryText("robot")
	h.settle()
	require.NoError(t, h.flow.SetPage(2))

	require.NoError(t, h.flow.ToggleSemester("II"))
	v := h.flow.Snapshot()
	assert.Equal(t, 1, v.Page)
	assert.Len(t, v.Items, 5)

	require.NoError(t, h.flow.ToggleSemester("II"))
	assert.False(t, h.flow.Snapshot().Filters.Active())

	assert.True(t, domerrors.IsInvalidInput(h.flow.ToggleLanguage("de")))
	assert.True(t, domerrors.IsInvalidInput(h.flow.ToggleSemester("VI")))
}

func TestFlow_PageBeyondRange(t *testing.T) {
	matcher := &fakeMatcher{matchText: func(string) ([]api.Course, error) { return robotCourses(3), nil }}
	h := newHarness(t, matcher)

	h.flow.SetQueryText("robot")
	h.settle()

	require.NoError(t, h.flow.SetPage(4))
	v := h.flow.Snapshot()
	assert.Equal(t, StateNoFilteredResults, v.State)
	assert.Empty(t, v.Items)

	assert.True(t, domerrors.IsInvalidInput(h.flow.SetPage(0)))
}

func TestFlow_ToggleModeTwiceClearsBothFields(t *testing.T) {
	matcher := &fakeMatcher{matchCode: func(string) ([]api.Course, error) { return robotCourses(2), nil }}
	h := newHarness(t, matcher)

	h.flow.SetCourseCode("ROB-1")
	require.NoError(t, h.flow.SearchCode())
	h.flow.Wait()
	require.Equal(t, 2, h.flow.Snapshot().ResultCount)

	h.flow.ToggleMode()
	v := h.flow.Snapshot()
	assert.Equal(t, ModeText, v.Mode)
	assert.Empty(t, v.CourseCode)
	assert.Zero(t, v.ResultCount)
	assert.Equal(t, StatePrompt, v.State)

	h.flow.SetQueryText("robot")
	h.flow.ToggleMode()
	v = h.flow.Snapshot()
	assert.Equal(t, ModeCode, v.Mode)
	assert.Empty(t, v.CourseCode)
	assert.Empty(t, v.QueryText)
	assert.False(t, v.Loading)

	h.settle()
	assert.Empty(t, matcher.texts(), "switching away cancels the pending text search")
}

func TestFlow_SetModeSameModeIsNoop(t *testing.T) {
	h := newHarness(t, &fakeMatcher{})

	h.flow.SetCourseCode("ROB-1")
	h.flow.SetMode(ModeCode)
	assert.Equal(t, "ROB-1", h.flow.Snapshot().CourseCode)
}

func TestFlow_CodeSearchFailureKeepsCourses(t *testing.T) {
	fail := false
	matcher := &fakeMatcher{matchCode: func(string) ([]api.Course, error) {
		if fail {
			return nil, domerrors.NewAPIError("match_code", "u", 500, errors.New("boom"))
		}
		return robotCourses(3), nil
	}}
	h := newHarness(t, matcher)

	h.flow.SetCourseCode("ROB")
	require.NoError(t, h.flow.SearchCode())
	h.flow.Wait()
	gen := h.flow.Snapshot().Generation

	fail = true
	require.NoError(t, h.flow.SearchCode())
	h.flow.Wait()

	v := h.flow.Snapshot()
	assert.Equal(t, 3, v.ResultCount)
	assert.Equal(t, gen, v.Generation)
	assert.False(t, v.Loading)

	failures := h.errs.all()
	require.Len(t, failures, 1)
	assert.Equal(t, MsgMatchFetch, failures[0].key)
	assert.Equal(t, MsgMatchFetch, domerrors.GetMessageKey(failures[0].err, ""))
}

func TestFlow_SearchCodeValidation(t *testing.T) {
	h := newHarness(t, &fakeMatcher{})

	assert.True(t, domerrors.IsInvalidInput(h.flow.SearchCode()), "empty code")

	h.flow.SetMode(ModeText)
	h.flow.SetCourseCode("ROB-1")
	assert.True(t, domerrors.IsInvalidInput(h.flow.SearchCode()), "wrong mode")
}

func TestFlow_LastIssuedRequestWins(t *testing.T) {
	release := make(chan struct{})
	matcher := &fakeMatcher{matchCode: func(code string) ([]api.Course, error) {
		if code == "OLD" {
			<-release
			return robotCourses(1), nil
		}
		return robotCourses(4), nil
	}}
	h := newHarness(t, matcher)

	h.flow.SetCourseCode("OLD")
	require.NoError(t, h.flow.SearchCode())
	h.flow.SetCourseCode("NEW")
	require.NoError(t, h.flow.SearchCode())

	require.Eventually(t, func() bool { return !h.flow.Snapshot().Loading }, time.Second, 5*time.Millisecond)
	close(release)
	h.flow.Wait()

	v := h.flow.Snapshot()
	assert.Equal(t, 4, v.ResultCount, "the older response must not overwrite the newer one")
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.StaleResponsesDropped.WithLabelValues("code")), 0)
}

func TestFlow_BlankQueryCancelsSearch(t *testing.T) {
	matcher := &fakeMatcher{}
	h := newHarness(t, matcher)

	h.flow.SetQueryText("rob")
	h.flow.SetQueryText("   ")
	h.settle()

	v := h.flow.Snapshot()
	assert.Empty(t, matcher.texts())
	assert.False(t, v.Loading)
	assert.Equal(t, StatePrompt, v.State)
}

func TestFlow_Reset(t *testing.T) {
	matcher := &fakeMatcher{matchText: func(string) ([]api.Course, error) { return robotCourses(7), nil }}
	h := newHarness(t, matcher)

	h.flow.SetQueryText("robot")
	h.settle()
	require.NoError(t, h.flow.ToggleLanguage("en"))

	h.flow.Reset()
	v := h.flow.Snapshot()
	assert.Equal(t, ModeText, v.Mode)
	assert.Empty(t, v.QueryText)
	assert.Zero(t, v.ResultCount)
	assert.False(t, v.Filters.Active())
}

func TestFlow_ResultLookup(t *testing.T) {
	matcher := &fakeMatcher{matchText: func(string) ([]api.Course, error) { return robotCourses(2), nil }}
	h := newHarness(t, matcher)

	h.flow.SetQueryText("robot")
	h.settle()
	gen := h.flow.Snapshot().Generation

	course, query, mode, ok := h.flow.Result(gen, 1)
	require.True(t, ok)
	assert.Equal(t, "ROB-2", course.Code)
	assert.Equal(t, "robot", query)
	assert.Equal(t, ModeText, mode)

	_, _, _, ok = h.flow.Result(gen+1, 0)
	assert.False(t, ok, "stale generation")
	_, _, _, ok = h.flow.Result(gen, 2)
	assert.False(t, ok, "out of range")
}

func TestFlow_AliasFailureIsReported(t *testing.T) {
	h := newHarness(t, &fakeMatcher{aliasErr: errors.New("down")})

	failures := h.errs.all()
	require.Len(t, failures, 1)
	assert.Equal(t, MsgCourseFetch, failures[0].key)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("text")
	require.NoError(t, err)
	assert.Equal(t, ModeText, m)

	_, err = ParseMode("voice")
	assert.True(t, domerrors.IsInvalidInput(err))
}
