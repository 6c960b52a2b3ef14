package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/coursematch/coursematch-web/internal/api"
	"github.com/coursematch/coursematch-web/internal/card"
	domerrors "github.com/coursematch/coursematch-web/internal/errors"
	"github.com/coursematch/coursematch-web/internal/i18n"
	"github.com/coursematch/coursematch-web/internal/notify"
	"github.com/coursematch/coursematch-web/internal/search"
)

// Prompt keys of the clear search confirmation.
const (
	MsgResetTitle       = "confirm.reset.title"
	MsgResetDescription = "confirm.reset.description"
)

func (h *Handler) setMode(c *gin.Context) {
	sess := sessionFrom(c)
	raw := c.PostForm("mode")
	if raw == "" {
		sess.Flow.ToggleMode()
		h.done(c)
		return
	}
	mode, err := search.ParseMode(raw)
	if err != nil {
		h.refuse(c, err)
		return
	}
	sess.Flow.SetMode(mode)
	h.done(c)
}

func (h *Handler) searchCode(c *gin.Context) {
	sess := sessionFrom(c)
	code := c.PostForm("courseCode")

	sess.Flow.SetMode(search.ModeCode)
	sess.Flow.SetCourseCode(code)
	if strings.TrimSpace(code) == "" {
		h.done(c)
		return
	}
	if err := sess.Flow.SearchCode(); err != nil {
		h.refuse(c, err)
		return
	}
	h.done(c)
}

// searchText stores a keystroke. The page script numbers keystrokes in
// "seq" so one that overtakes its successor on the wire is dropped.
func (h *Handler) searchText(c *gin.Context) {
	flow := sessionFrom(c).Flow
	text := c.PostForm("queryText")

	raw := c.PostForm("seq")
	if raw == "" {
		flow.SetQueryText(text)
		h.done(c)
		return
	}
	seq, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		h.refuse(c, domerrors.NewValidationError("seq", "must be a number"))
		return
	}
	if !flow.SetQueryTextSeq(seq, text) {
		h.log.DebugContext(c.Request.Context(), "Late keystroke dropped", "seq", seq)
	}
	h.done(c)
}

func (h *Handler) toggleFilter(c *gin.Context) {
	sess := sessionFrom(c)
	value := c.PostForm("value")

	var err error
	switch c.PostForm("kind") {
	case "language":
		err = sess.Flow.ToggleLanguage(value)
	case "semester":
		err = sess.Flow.ToggleSemester(value)
	default:
		err = domerrors.NewValidationError("kind", "must be language or semester")
	}
	if err != nil {
		h.refuse(c, err)
		return
	}
	h.done(c)
}

func (h *Handler) setPage(c *gin.Context) {
	page, err := strconv.Atoi(c.PostForm("page"))
	if err != nil {
		h.refuse(c, domerrors.NewValidationError("page", "must be a number"))
		return
	}
	if err := sessionFrom(c).Flow.SetPage(page); err != nil {
		h.refuse(c, err)
		return
	}
	h.done(c)
}

func (h *Handler) setLocale(c *gin.Context) {
	l, err := i18n.Parse(c.PostForm("locale"))
	if err != nil {
		h.refuse(c, err)
		return
	}
	sessionFrom(c).Locale.Set(l)
	h.setCookie(c, LocaleCookie, string(l), localeCookieAge)
	h.done(c)
}

// feedback votes on a card of the current text search results.
func (h *Handler) feedback(c *gin.Context) {
	sess := sessionFrom(c)

	gen, errGen := strconv.ParseUint(c.PostForm("generation"), 10, 64)
	index, errIndex := strconv.Atoi(c.PostForm("index"))
	label, errLabel := strconv.Atoi(c.PostForm("label"))
	if err := errors.Join(errGen, errIndex, errLabel); err != nil {
		h.refuse(c, domerrors.NewValidationError("feedback", "generation, index and label must be numbers"))
		return
	}

	course, query, mode, ok := sess.Flow.Result(gen, index)
	if !ok {
		// The list was replaced after the card was rendered.
		h.done(c)
		return
	}
	if mode != search.ModeText {
		h.refuse(c, domerrors.NewValidationError("feedback", "only text search results take feedback"))
		return
	}

	key := card.Key{Generation: gen, Index: index}
	err := sess.Cards.Vote(c.Request.Context(), key, course, query, api.Label(label))
	switch {
	case err == nil:
	case domerrors.IsInvalidInput(err):
		h.refuse(c, err)
		return
	case errors.Is(err, domerrors.ErrAlreadyVoted), errors.Is(err, domerrors.ErrNotFound):
		h.log.DebugContext(c.Request.Context(), "Vote ignored", "error", err, "index", index)
	default:
		// Already shown as a banner by the board.
	}
	h.done(c)
}

func (h *Handler) reset(c *gin.Context) {
	sess := sessionFrom(c)
	sess.Confirm.Confirm(func(context.Context) error {
		sess.Flow.Reset()
		return nil
	}, notify.ConfirmOptions{
		TitleKey:       MsgResetTitle,
		DescriptionKey: MsgResetDescription,
	})
	h.done(c)
}

func (h *Handler) confirm(c *gin.Context) {
	err := sessionFrom(c).Confirm.Accept(c.Request.Context(), c.PostForm("id"))
	if err != nil && !errors.Is(err, domerrors.ErrNotFound) {
		h.log.WithError(err).WarnContext(c.Request.Context(), "Confirmed operation failed")
	}
	h.done(c)
}

func (h *Handler) cancelConfirm(c *gin.Context) {
	// A stale prompt id means the prompt is already gone.
	err := sessionFrom(c).Confirm.Cancel(c.PostForm("id"))
	if err != nil && !errors.Is(err, domerrors.ErrNotFound) {
		h.log.WithError(err).WarnContext(c.Request.Context(), "Cancelling confirmation failed")
	}
	h.done(c)
}

func (h *Handler) dismissError(c *gin.Context) {
	sessionFrom(c).Errors.Dismiss()
	h.done(c)
}

// done answers a successful action: 204 for the page script, otherwise a
// redirect back to the results.
func (h *Handler) done(c *gin.Context) {
	if isFetch(c) {
		c.Status(http.StatusNoContent)
		return
	}
	c.Redirect(http.StatusSeeOther, resultsAnchor)
}

// refuse answers an action that was not carried out: 429 or the rate-limited
// banner when err is ErrRateLimitExceeded, otherwise 400 or the invalid-input
// banner.
func (h *Handler) refuse(c *gin.Context, err error) {
	status, errorType, key := http.StatusBadRequest, "invalid_input", MsgInvalidInput
	if domerrors.IsRateLimitExceeded(err) {
		status, errorType, key = http.StatusTooManyRequests, "rate_limited", MsgRateLimited
	}
	h.recordError(c, errorType)
	h.log.WithError(err).DebugContext(c.Request.Context(), "Refused form post", "path", c.FullPath())

	if isFetch(c) {
		c.AbortWithStatus(status)
		return
	}
	sessionFrom(c).Errors.Show(key)
	c.Redirect(http.StatusSeeOther, resultsAnchor)
	c.Abort()
}
