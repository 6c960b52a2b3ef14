// Package search implements the course search interaction: mode toggle,
// code and debounced text matching, filter chips and pagination.
package search

import (
	"slices"
	"strings"

	"github.com/coursematch/coursematch-web/internal/api"
)

// CoursesPerPage is the fixed page size of the result list.
const CoursesPerPage = 5

// Filter vocabularies. Selections only ever hold values from these lists.
var (
	languageOptions = []string{"fi", "en", "sv"}
	semesterOptions = []string{"I", "II", "III", "IV", "V", "Summer"}
)

// LanguageOptions returns the selectable language tags.
func LanguageOptions() []string { return slices.Clone(languageOptions) }

// SemesterOptions returns the selectable semester tags.
func SemesterOptions() []string { return slices.Clone(semesterOptions) }

// Filters is the current language and semester selection.
// An empty set passes every course.
type Filters struct {
	Languages []string
	Semesters []string
}

// HasLanguage reports whether tag is selected.
func (f Filters) HasLanguage(tag string) bool { return slices.Contains(f.Languages, tag) }

// HasSemester reports whether tag is selected.
func (f Filters) HasSemester(tag string) bool { return slices.Contains(f.Semesters, tag) }

// Active reports whether any filter is selected.
func (f Filters) Active() bool { return len(f.Languages) > 0 || len(f.Semesters) > 0 }

func (f Filters) clone() Filters {
	return Filters{Languages: slices.Clone(f.Languages), Semesters: slices.Clone(f.Semesters)}
}

// Matches reports whether c passes both selections.
func (f Filters) Matches(c api.Course) bool {
	if len(f.Languages) > 0 {
		lang := strings.TrimSpace(c.Language)
		if !slices.ContainsFunc(f.Languages, func(tag string) bool { return strings.EqualFold(tag, lang) }) {
			return false
		}
	}
	if len(f.Semesters) > 0 {
		tokens := PeriodTokens(c.Period)
		match := false
		for _, tag := range f.Semesters {
			if slices.ContainsFunc(tokens, func(tok string) bool { return strings.EqualFold(tok, tag) }) {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	return true
}

// PeriodTokens splits a period string such as "I-II" or "III, Summer" into
// its semester tokens. Tokens are compared whole so "I" never matches "II".
func PeriodTokens(period string) []string {
	return strings.FieldsFunc(period, func(r rune) bool {
		switch r {
		case ' ', ',', '-', '/', ';', '\t', '\n', '–':
			return true
		}
		return false
	})
}

// FilterCourses returns the courses passing f, preserving order.
func FilterCourses(courses []api.Course, f Filters) []api.Course {
	out := make([]api.Course, 0, len(courses))
	for _, c := range courses {
		if f.Matches(c) {
			out = append(out, c)
		}
	}
	return out
}

// TotalPages is ceil(n / CoursesPerPage).
func TotalPages(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + CoursesPerPage - 1) / CoursesPerPage
}

// Paginate returns the 1-indexed page of s. Pages outside the range yield an
// empty slice.
func Paginate[T any](s []T, page int) []T {
	if page < 1 {
		return nil
	}
	start := (page - 1) * CoursesPerPage
	if start >= len(s) {
		return nil
	}
	end := min(start+CoursesPerPage, len(s))
	return s[start:end]
}

func toggle(set []string, tag string, vocabulary []string) []string {
	if i := slices.Index(set, tag); i >= 0 {
		return slices.Delete(slices.Clone(set), i, i+1)
	}
	// Keep selections in vocabulary order so rendering is stable.
	out := make([]string, 0, len(set)+1)
	for _, v := range vocabulary {
		if v == tag || slices.Contains(set, v) {
			out = append(out, v)
		}
	}
	return out
}
