// Package notify holds the per-session error banner and confirmation prompt.
package notify

import (
	"context"
	"sync"
	"time"

	domerrors "github.com/coursematch/coursematch-web/internal/errors"
	"github.com/coursematch/coursematch-web/internal/logger"
)

// MsgServiceUnavailable is shown whenever the API cannot be reached,
// regardless of which call failed.
const MsgServiceUnavailable = "errorHandling.serviceUnavailable"

// Banner is a user-visible error message, stored as a localization key.
type Banner struct {
	Key string
	At  time.Time
}

// CaptureFunc forwards an error to error tracking.
type CaptureFunc func(ctx context.Context, err error)

// ReporterOptions configures a Reporter.
type ReporterOptions struct {
	Logger  *logger.Logger
	Capture CaptureFunc
}

// Reporter keeps the last error banner of one session. A banner stays until
// it is dismissed or replaced by a newer one.
type Reporter struct {
	log     *logger.Logger
	capture CaptureFunc

	mu     sync.Mutex
	banner *Banner
}

// NewReporter creates an empty reporter.
func NewReporter(opts ReporterOptions) *Reporter {
	return &Reporter{log: opts.Logger, capture: opts.Capture}
}

// Fail records a failed remote call. Unreachable-service failures show the
// service unavailable message, anything else shows the key wrapped into err
// or fallbackKey.
func (r *Reporter) Fail(ctx context.Context, fallbackKey string, err error) {
	key := domerrors.GetMessageKey(err, fallbackKey)
	if domerrors.Classify(err) == domerrors.KindUnavailable {
		key = MsgServiceUnavailable
	}

	if r.log != nil {
		r.log.WithModule("notify").WithError(err).WarnContext(ctx, "Remote call failed", "message_key", key)
	}
	if r.capture != nil {
		r.capture(ctx, err)
	}
	r.Show(key)
}

// Show displays key as the current banner.
func (r *Reporter) Show(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.banner = &Banner{Key: key, At: time.Now()}
}

// Current returns the banner being shown, if any.
func (r *Reporter) Current() (Banner, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.banner == nil {
		return Banner{}, false
	}
	return *r.banner, true
}

// Dismiss hides the banner.
func (r *Reporter) Dismiss() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.banner = nil
}
