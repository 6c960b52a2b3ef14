package web

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coursematch/coursematch-web/internal/api"
	"github.com/coursematch/coursematch-web/internal/card"
	"github.com/coursematch/coursematch-web/internal/i18n"
	"github.com/coursematch/coursematch-web/internal/notify"
	"github.com/coursematch/coursematch-web/internal/search"
	"github.com/coursematch/coursematch-web/internal/session"
)

// pageData is what the templates render.
type pageData struct {
	Locale    i18n.Locale
	Locales   []i18n.Locale
	View      search.View
	Cards     []cardView
	Banner    string // message key; empty when no banner is shown
	Prompt    *notify.Prompt
	Languages []string
	Semesters []string
}

// cardView is one course card with its feedback controls.
type cardView struct {
	Course     api.Course
	Generation uint64
	Index      int
	Feedback   bool
	Open       bool // detail dialog rendered expanded

	Voted          bool
	LikePressed    bool
	LikeHidden     bool
	DislikePressed bool
	DislikeHidden  bool
}

func (h *Handler) index(c *gin.Context) {
	h.render(c, "page")
}

// results renders the live fragment the page script polls.
func (h *Handler) results(c *gin.Context) {
	h.render(c, "live")
}

func (h *Handler) render(c *gin.Context, name string) {
	c.Header("Cache-Control", "no-store")
	c.HTML(http.StatusOK, name, buildPage(sessionFrom(c)))
}

func buildPage(sess *session.Session) pageData {
	v := sess.Flow.Snapshot()
	p := pageData{
		Locale:    sess.Locale.Get(),
		Locales:   i18n.Locales,
		View:      v,
		Languages: search.LanguageOptions(),
		Semesters: search.SemesterOptions(),
	}
	if b, ok := sess.Errors.Current(); ok {
		p.Banner = b.Key
	}
	if pr, ok := sess.Confirm.Pending(); ok {
		p.Prompt = &pr
	}

	feedback := v.ResultMode == search.ModeText
	p.Cards = make([]cardView, 0, len(v.Items))
	for _, it := range v.Items {
		st := sess.Cards.State(card.Key{Generation: v.Generation, Index: it.Index})
		p.Cards = append(p.Cards, cardView{
			Course:         it.Course,
			Generation:     v.Generation,
			Index:          it.Index,
			Feedback:       feedback,
			Open:           st.Status != card.Idle,
			Voted:          st.Status == card.Voted,
			LikePressed:    st.Pressed(api.LabelLike),
			LikeHidden:     st.Hidden(api.LabelLike),
			DislikePressed: st.Pressed(api.LabelDislike),
			DislikeHidden:  st.Hidden(api.LabelDislike),
		})
	}
	return p
}

func (h *Handler) funcs() template.FuncMap {
	return template.FuncMap{
		"t": func(l i18n.Locale, key string) string {
			return h.catalog.T(l, key, nil)
		},
		"tf": h.catalog.T,
		"list": func(l i18n.Locale, key string) []string {
			return h.catalog.List(l, key)
		},
		"dict":  dict,
		"add":   func(a, b int) int { return a + b },
		"modes": func() []search.Mode { return []search.Mode{search.ModeCode, search.ModeText} },
	}
}

// dict builds a map from alternating keys and values.
func dict(kv ...any) (map[string]any, error) {
	if len(kv)%2 != 0 {
		return nil, errors.New("dict: odd number of arguments")
	}
	m := make(map[string]any, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict: key %v is not a string", kv[i])
		}
		m[k] = kv[i+1]
	}
	return m, nil
}
