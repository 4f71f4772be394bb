// Package ratelimit implements per-source admission control.
//
// Limiters are pure oracles: they answer "may I send now" and record sends,
// but never block, sleep, or retry. The caller decides what to do with a
// denial (serve cache, surface a rate-limit error).
package ratelimit

import (
	"sync"
	"time"
)

// Limiter is the admission-control contract shared by all sources.
type Limiter interface {
	// IsLimited reports whether a request right now would exceed the limit.
	IsLimited() bool

	// NextAvailable returns the instant the limiter opens again, or nil when
	// it is not limited.
	NextAvailable() *time.Time

	// RecordRequest marks a request as sent at the current instant.
	RecordRequest()
}

// Interval admits at most one request per fixed interval.
type Interval struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	now      func() time.Time
}

// Option configures a limiter.
type Option func(*clockHolder)

type clockHolder struct {
	now func() time.Time
}

// WithClock injects a clock, used by tests to control admission windows.
func WithClock(now func() time.Time) Option {
	return func(h *clockHolder) {
		h.now = now
	}
}

// NewInterval creates a limiter admitting requestsPerSecond on average by
// enforcing a minimum gap between consecutive requests.
func NewInterval(requestsPerSecond float64, opts ...Option) *Interval {
	h := clockHolder{now: time.Now}
	for _, opt := range opts {
		opt(&h)
	}
	return &Interval{
		interval: time.Duration(float64(time.Second) / requestsPerSecond),
		now:      h.now,
	}
}

func (l *Interval) IsLimited() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limitedLocked()
}

func (l *Interval) NextAvailable() *time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.limitedLocked() {
		return nil
	}
	next := l.last.Add(l.interval)
	return &next
}

func (l *Interval) RecordRequest() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last = l.now()
}

func (l *Interval) limitedLocked() bool {
	if l.last.IsZero() {
		return false
	}
	return l.now().Sub(l.last) < l.interval
}

// Band is one wall-clock window of the stateful registry's published limits.
// Only PerSecond is enforced locally; the minute and hour ceilings are the
// remote service's responsibility and are carried here as documentation of
// the full policy, not as tracked counters.
type Band struct {
	Name      string
	PerSecond int
	PerMinute int
	PerHour   int
}

// Published BIR service limits by hour of day.
var defaultBands = []Band{
	{Name: "peak", PerSecond: 3, PerMinute: 120, PerHour: 6000},        // 08:00-16:59
	{Name: "off_peak_1", PerSecond: 3, PerMinute: 150, PerHour: 8000},  // 06:00-07:59, 17:00-21:59
	{Name: "off_peak_2", PerSecond: 4, PerMinute: 200, PerHour: 10000}, // 22:00-05:59
}

// Banded enforces the per-second ceiling of whichever band the current hour
// falls into.
type Banded struct {
	mu    sync.Mutex
	bands []Band
	last  time.Time
	now   func() time.Time
}

// NewBanded creates a limiter over the published time-of-day bands.
func NewBanded(opts ...Option) *Banded {
	h := clockHolder{now: time.Now}
	for _, opt := range opts {
		opt(&h)
	}
	return &Banded{bands: defaultBands, now: h.now}
}

// CurrentBand returns the band covering the current wall-clock hour.
func (l *Banded) CurrentBand() Band {
	return bandForHour(l.bands, l.now().Hour())
}

func bandForHour(bands []Band, hour int) Band {
	switch {
	case hour >= 8 && hour <= 16:
		return bands[0]
	case (hour >= 6 && hour <= 7) || (hour >= 17 && hour <= 21):
		return bands[1]
	default:
		return bands[2]
	}
}

func (l *Banded) IsLimited() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limitedLocked()
}

func (l *Banded) NextAvailable() *time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.limitedLocked() {
		return nil
	}
	next := l.last.Add(l.minIntervalLocked())
	return &next
}

func (l *Banded) RecordRequest() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last = l.now()
}

func (l *Banded) limitedLocked() bool {
	if l.last.IsZero() {
		return false
	}
	return l.now().Sub(l.last) < l.minIntervalLocked()
}

func (l *Banded) minIntervalLocked() time.Duration {
	band := bandForHour(l.bands, l.now().Hour())
	return time.Duration(float64(time.Second) / float64(band.PerSecond))
}
