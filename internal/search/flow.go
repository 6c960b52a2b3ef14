package search

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/coursematch/coursematch-web/internal/api"
	"github.com/coursematch/coursematch-web/internal/debounce"
	domerrors "github.com/coursematch/coursematch-web/internal/errors"
	"github.com/coursematch/coursematch-web/internal/logger"
	"github.com/coursematch/coursematch-web/internal/metrics"
)

// Message keys reported when a remote call fails.
const (
	MsgMatchFetch  = "errorHandling.match.fetch"
	MsgCourseFetch = "errorHandling.course.fetch"
)

// Mode is the active search input.
type Mode string

const (
	ModeCode Mode = "code"
	ModeText Mode = "text"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeCode, ModeText:
		return Mode(s), nil
	}
	return "", domerrors.NewValidationError("mode", "must be code or text")
}

// Matcher is the part of the API client the flow calls.
type Matcher interface {
	MatchCourseCode(ctx context.Context, code string) ([]api.Course, error)
	MatchText(ctx context.Context, text string) ([]api.Course, error)
	ListCourses(ctx context.Context) ([]api.CourseAlias, error)
}

// Reporter surfaces a failed remote call to the user. fallbackKey names the
// message shown when the failure is not a reachability problem.
type Reporter interface {
	Fail(ctx context.Context, fallbackKey string, err error)
}

// Options configures a Flow.
type Options struct {
	Debounce        time.Duration
	DebounceOptions []debounce.Option // extra options, e.g. a manual scheduler in tests
	Metrics         *metrics.Metrics
	Logger          *logger.Logger
}

// Flow holds the search state of one browser session.
//
// Every remote call takes a sequence number when it is issued. A response is
// applied only if no newer call (or mode switch, or reset) happened since, so
// the last issued request always wins.
type Flow struct {
	matcher  Matcher
	reporter Reporter
	metrics  *metrics.Metrics
	log      *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	debouncer *debounce.Debouncer[string]

	mu          sync.Mutex
	closed      bool
	mode        Mode
	courseCode  string
	queryText   string
	courses     []api.Course
	resultQuery string
	resultMode  Mode
	loading     bool
	page        int
	filters     Filters
	seq         uint64
	inputSeq    uint64 // last accepted keystroke number
	generation  uint64
	aliases     []api.CourseAlias
}

// NewFlow creates a flow in code mode and starts fetching the course alias
// list. ctx scopes every remote call and is cancelled by Close.
func NewFlow(ctx context.Context, matcher Matcher, reporter Reporter, opts Options) *Flow {
	ctx, cancel := context.WithCancel(ctx)
	f := &Flow{
		matcher:  matcher,
		reporter: reporter,
		metrics:  opts.Metrics,
		log:      opts.Logger,
		ctx:      ctx,
		cancel:   cancel,
		mode:     ModeCode,
		page:     1,
	}

	debounceOpts := []debounce.Option{debounce.WithObserver(f.observeDebounce)}
	debounceOpts = append(debounceOpts, opts.DebounceOptions...)
	f.debouncer = debounce.New(opts.Debounce, f.fireText, debounceOpts...)

	f.launch(f.loadAliases)
	return f
}

// ToggleMode switches to the other mode.
func (f *Flow) ToggleMode() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mode == ModeCode {
		f.switchLocked(ModeText)
	} else {
		f.switchLocked(ModeCode)
	}
}

// SetMode switches to m. Selecting the active mode changes nothing.
func (f *Flow) SetMode(m Mode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mode != m {
		f.switchLocked(m)
	}
}

// switchLocked clears the field of the mode being left and the results.
func (f *Flow) switchLocked(to Mode) {
	if f.mode == ModeCode {
		f.courseCode = ""
	} else {
		f.queryText = ""
		f.debouncer.Cancel()
	}
	f.mode = to
	f.clearResultsLocked()
}

// SetCourseCode stores the code input without searching.
func (f *Flow) SetCourseCode(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.courseCode = code
}

// SearchCode starts a match-by-code call for the stored course code.
// It returns at once; the view shows the loading state until the call ends.
func (f *Flow) SearchCode() error {
	f.mu.Lock()
	code := strings.TrimSpace(f.courseCode)
	if f.mode != ModeCode {
		f.mu.Unlock()
		return domerrors.NewValidationError("mode", "code search requires code mode")
	}
	if code == "" {
		f.mu.Unlock()
		return domerrors.NewValidationError("courseCode", "must not be empty")
	}
	seq := f.issueLocked()
	f.mu.Unlock()

	f.launch(func() { f.run(seq, ModeCode, code) })
	return nil
}

// SetQueryText stores the raw text immediately and schedules a debounced
// match-by-text call. Blank text cancels the pending call.
func (f *Flow) SetQueryText(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setQueryTextLocked(text)
}

// SetQueryTextSeq is SetQueryText for numbered keystrokes. Text numbered at or
// below the last accepted keystroke arrived late and is dropped; the result
// reports whether text was stored.
func (f *Flow) SetQueryTextSeq(seq uint64, text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if seq <= f.inputSeq {
		return false
	}
	f.inputSeq = seq
	f.setQueryTextLocked(text)
	return true
}

func (f *Flow) setQueryTextLocked(text string) {
	if f.mode != ModeText {
		f.switchLocked(ModeText)
	}
	f.queryText = text

	if strings.TrimSpace(text) == "" {
		f.debouncer.Cancel()
		f.seq++
		f.loading = false
		return
	}
	f.loading = true
	f.debouncer.Trigger(text)
}

// ToggleLanguage adds or removes a language tag and returns to page 1.
func (f *Flow) ToggleLanguage(tag string) error {
	if !slices.Contains(languageOptions, tag) {
		return domerrors.NewValidationError("language", "unknown language "+tag)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters.Languages = toggle(f.filters.Languages, tag, languageOptions)
	f.page = 1
	return nil
}

// ToggleSemester adds or removes a semester tag and returns to page 1.
func (f *Flow) ToggleSemester(tag string) error {
	if !slices.Contains(semesterOptions, tag) {
		return domerrors.NewValidationError("semester", "unknown semester "+tag)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters.Semesters = toggle(f.filters.Semesters, tag, semesterOptions)
	f.page = 1
	return nil
}

// SetPage moves to page. Pages past the end are accepted and render as the
// filtered empty state.
func (f *Flow) SetPage(page int) error {
	if page < 1 {
		return domerrors.NewValidationError("page", "must be at least 1")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.page = page
	return nil
}

// Reset clears both inputs, results and filters, keeping the mode.
func (f *Flow) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.debouncer.Cancel()
	f.courseCode = ""
	f.queryText = ""
	f.filters = Filters{}
	f.clearResultsLocked()
}

// Result returns the course at index of result generation gen together with
// the query that produced it.
func (f *Flow) Result(gen uint64, index int) (api.Course, string, Mode, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.generation || index < 0 || index >= len(f.courses) {
		return api.Course{}, "", "", false
	}
	return f.courses[index], f.resultQuery, f.resultMode, true
}

// Wait blocks until every in-flight remote call has finished.
func (f *Flow) Wait() {
	f.wg.Wait()
}

// Close stops the debouncer, cancels in-flight calls and waits for them.
func (f *Flow) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()

	f.debouncer.Stop()
	f.cancel()
	f.wg.Wait()
}

func (f *Flow) clearResultsLocked() {
	f.courses = nil
	f.resultQuery = ""
	f.resultMode = ""
	f.page = 1
	f.loading = false
	f.seq++
	f.generation++
}

// issueLocked marks a new request as the latest one.
func (f *Flow) issueLocked() uint64 {
	f.seq++
	f.loading = true
	return f.seq
}

func (f *Flow) launch(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.wg.Go(fn)
}

func (f *Flow) fireText(text string) {
	f.mu.Lock()
	if f.mode != ModeText || f.queryText != text {
		f.mu.Unlock()
		return
	}
	seq := f.issueLocked()
	f.mu.Unlock()

	f.launch(func() { f.run(seq, ModeText, text) })
}

func (f *Flow) run(seq uint64, mode Mode, query string) {
	var (
		courses []api.Course
		err     error
	)
	if mode == ModeCode {
		courses, err = f.matcher.MatchCourseCode(f.ctx, query)
	} else {
		courses, err = f.matcher.MatchText(f.ctx, query)
	}

	f.mu.Lock()
	if seq != f.seq {
		f.mu.Unlock()
		if f.metrics != nil {
			f.metrics.RecordStaleResponse(string(mode))
		}
		return
	}
	f.loading = false
	if err == nil {
		f.courses = courses
		f.resultQuery = query
		f.resultMode = mode
		f.page = 1
		f.generation++
	}
	f.mu.Unlock()

	if err != nil && f.ctx.Err() == nil {
		f.reporter.Fail(f.ctx, MsgMatchFetch, domerrors.NewWrapper("search", "match_"+string(mode)).Wrap(err, MsgMatchFetch))
		return
	}
	if err == nil && f.log != nil {
		f.log.WithModule("search").WithFields(map[string]any{
			"mode":    string(mode),
			"results": len(courses),
		}).DebugContext(f.ctx, "Search results applied")
	}
}

func (f *Flow) loadAliases() {
	aliases, err := f.matcher.ListCourses(f.ctx)
	if err != nil {
		if f.ctx.Err() == nil {
			f.reporter.Fail(f.ctx, MsgCourseFetch, domerrors.NewWrapper("search", "list_courses").Wrap(err, MsgCourseFetch))
		}
		return
	}
	f.mu.Lock()
	f.aliases = aliases
	f.mu.Unlock()
}

func (f *Flow) observeDebounce(o debounce.Outcome) {
	if f.metrics != nil {
		f.metrics.RecordDebounce(string(o))
	}
}
