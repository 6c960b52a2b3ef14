// Package i18n holds the display locale and the localized string tables.
package i18n

import (
	"sync"

	"golang.org/x/text/language"

	domerrors "github.com/coursematch/coursematch-web/internal/errors"
)

// Locale is a supported display language.
type Locale string

const (
	Finnish Locale = "fi"
	English Locale = "en"
)

// Locales lists the supported locales in display order.
var Locales = []Locale{Finnish, English}

var matcher = language.NewMatcher([]language.Tag{language.Finnish, language.English})

// Parse validates a locale code.
func Parse(s string) (Locale, error) {
	switch Locale(s) {
	case Finnish, English:
		return Locale(s), nil
	}
	return "", domerrors.NewValidationError("locale", "must be fi or en")
}

// Negotiate picks the best supported locale for an Accept-Language header,
// or fallback when nothing matches.
func Negotiate(acceptLanguage string, fallback Locale) Locale {
	if acceptLanguage == "" {
		return fallback
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return fallback
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return fallback
	}
	return Locales[idx]
}

// Store holds the active locale of one session. It only changes through Set.
type Store struct {
	mu      sync.RWMutex
	current Locale
}

// NewStore creates a store starting at initial.
func NewStore(initial Locale) *Store {
	return &Store{current: initial}
}

// Get returns the active locale.
func (s *Store) Get() Locale {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Set changes the active locale.
func (s *Store) Set(l Locale) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = l
}
