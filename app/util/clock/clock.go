package clock

import (
	"medremind/app/config"
	"sync"
	"time"

	"github.com/samber/do"
)

const (
	DateLayout   = "2006-01-02"
	MinuteLayout = "15:04"
)

type Clock interface {
	Now() time.Time
	Location() *time.Location
}

type wallClock struct {
	loc *time.Location
}

func New(di *do.Injector) (Clock, error) {
	cfg := do.MustInvoke[*config.Config](di)
	return NewWall(cfg.Location()), nil
}

func NewWall(loc *time.Location) Clock {
	return &wallClock{loc: loc}
}

func (c *wallClock) Now() time.Time {
	return time.Now().In(c.loc)
}

func (c *wallClock) Location() *time.Location {
	return c.loc
}

// Fixed is a settable clock for tests and one-shot commands.
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

func NewFixed(now time.Time) *Fixed {
	return &Fixed{now: now}
}

func (c *Fixed) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *Fixed) Location() *time.Location {
	return c.Now().Location()
}

func (c *Fixed) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = now
}

func (c *Fixed) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

// Date formats the calendar day of t as stored in the ledger.
func Date(t time.Time) string {
	return t.Format(DateLayout)
}

// Minute formats t as HH:MM.
func Minute(t time.Time) string {
	return t.Format(MinuteLayout)
}

// Midnight returns the start of the calendar day of t in its own location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// At combines a calendar day string with an HH:MM time in loc.
func At(day, hhmm string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout+" "+MinuteLayout, day+" "+hhmm, loc)
}

// Greeting returns the time-of-day salutation.
func Greeting(t time.Time) string {
	switch h := t.Hour(); {
	case h < 12:
		return "☀️ Bom dia!"
	case h < 18:
		return "🌤️ Boa tarde!"
	default:
		return "🌙 Boa noite!"
	}
}
