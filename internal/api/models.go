package api

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Course is one match returned by the course matching API.
type Course struct {
	Code          string  `json:"code"`
	Name          string  `json:"name"`
	Credits       Credits `json:"credits"`
	Period        string  `json:"period"`
	Language      string  `json:"language"`
	Description   string  `json:"desc"`
	MycoursesLink string  `json:"mycoursesLink"`
	SisuLink      string  `json:"sisuLink"`
}

// CourseAlias is a code/name pair used for code search suggestions.
type CourseAlias struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Label is a feedback vote value as the API expects it.
type Label int

const (
	LabelDislike Label = 0
	LabelLike    Label = 1
)

// String returns the metric label of the vote.
func (l Label) String() string {
	if l == LabelLike {
		return "like"
	}
	return "dislike"
}

// Feedback is the body of a feedback submission.
type Feedback struct {
	QueryText string `json:"queryText"`
	MatchText string `json:"matchText"`
	MatchCode string `json:"matchCode"`
	Label     Label  `json:"label"`
}

// Credits holds the credit amount of a course. The API sends either a
// number (5) or a range string ("3-5").
type Credits string

// UnmarshalJSON accepts JSON numbers, strings and null.
func (c *Credits) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Credits(s)
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*c = Credits(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}
