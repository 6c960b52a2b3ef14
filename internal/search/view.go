package search

import (
	"slices"
	"strings"

	"github.com/coursematch/coursematch-web/internal/api"
)

// RenderState selects what the results area shows.
type RenderState string

const (
	StatePrompt            RenderState = "prompt"              // text mode with an empty query
	StateLoading           RenderState = "loading"             // a call is outstanding
	StateNoMatches         RenderState = "no_matches"          // the API returned nothing
	StateNoFilteredResults RenderState = "no_filtered_results" // filters or page leave nothing
	StateResults           RenderState = "results"
)

// Item is a displayed course with its position in the raw result list.
type Item struct {
	Course api.Course
	Index  int
}

// View is an immutable snapshot of a Flow for rendering.
type View struct {
	Mode       Mode
	CourseCode string
	QueryText  string
	Loading    bool
	State      RenderState

	Items         []Item
	Page          int
	TotalPages    int
	ResultCount   int
	FilteredCount int
	Filters       Filters

	// Generation changes whenever the result list is replaced.
	Generation  uint64
	ResultQuery string
	ResultMode  Mode

	Aliases []api.CourseAlias

	// NextInputSeq is the number the next keystroke must carry.
	NextInputSeq uint64
}

// HasPrev reports whether a previous page exists.
func (v View) HasPrev() bool { return v.Page > 1 }

// HasNext reports whether a following page exists.
func (v View) HasNext() bool { return v.Page < v.TotalPages }

// Pages lists page numbers for the pagination control.
func (v View) Pages() []int {
	pages := make([]int, v.TotalPages)
	for i := range pages {
		pages[i] = i + 1
	}
	return pages
}

// Snapshot computes the current view.
func (f *Flow) Snapshot() View {
	f.mu.Lock()
	defer f.mu.Unlock()

	v := View{
		Mode:        f.mode,
		CourseCode:  f.courseCode,
		QueryText:   f.queryText,
		Loading:     f.loading,
		Page:        f.page,
		ResultCount: len(f.courses),
		Filters:     f.filters.clone(),
		Generation:  f.generation,
		ResultQuery: f.resultQuery,
		ResultMode:  f.resultMode,
		Aliases:     slices.Clone(f.aliases),

		NextInputSeq: f.inputSeq + 1,
	}

	filtered := make([]Item, 0, len(f.courses))
	for i, c := range f.courses {
		if f.filters.Matches(c) {
			filtered = append(filtered, Item{Course: c, Index: i})
		}
	}
	v.FilteredCount = len(filtered)
	v.TotalPages = TotalPages(len(filtered))
	v.Items = Paginate(filtered, f.page)
	v.State = renderState(v)
	return v
}

func renderState(v View) RenderState {
	switch {
	case v.Mode == ModeText && strings.TrimSpace(v.QueryText) == "":
		return StatePrompt
	case v.Loading:
		return StateLoading
	case v.ResultCount == 0:
		return StateNoMatches
	case len(v.Items) == 0:
		return StateNoFilteredResults
	default:
		return StateResults
	}
}
