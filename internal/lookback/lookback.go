// Package lookback decides which publication times count for an edition.
//
// Monday editions cover the weekend back to Friday morning, Tuesday
// through Thursday cover a day and a half, and any other day falls back
// to the last day.
package lookback

import (
	"fmt"
	"time"

	"github.com/abelbrown/roundup/internal/config"
)

// Window is a closed publication-time interval.
type Window struct {
	Start       time.Time
	End         time.Time
	Explanation string
}

// Contains reports whether t falls inside the window, inclusive.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Hours is the window length rounded down to whole hours.
func (w Window) Hours() int {
	return int(w.End.Sub(w.Start).Hours())
}

// Policy computes windows in a fixed editorial timezone.
type Policy struct {
	loc          *time.Location
	cutoffHour   int
	midweekHours int
	defaultHours int
	skew         time.Duration
}

// New builds a Policy from config.
func New(cfg config.LookbackConfig) (*Policy, error) {
	tz := cfg.Timezone
	if tz == "" {
		tz = "America/New_York"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	if cfg.MidweekHours <= 0 || cfg.DefaultHours <= 0 {
		return nil, fmt.Errorf("lookback hours must be positive (midweek=%d default=%d)", cfg.MidweekHours, cfg.DefaultHours)
	}
	return &Policy{
		loc:          loc,
		cutoffHour:   cfg.WeekendCutoffHour,
		midweekHours: cfg.MidweekHours,
		defaultHours: cfg.DefaultHours,
		skew:         time.Duration(cfg.FutureSkewMinutes) * time.Minute,
	}, nil
}

// Window returns the active window for an edition assembled at now.
func (p *Policy) Window(now time.Time) Window {
	local := now.In(p.loc)
	day := local.Weekday()

	switch day {
	case time.Monday:
		y, m, d := local.Date()
		start := time.Date(y, m, d-3, p.cutoffHour, 0, 0, 0, p.loc)
		w := p.window(start, now)
		w.Explanation = fmt.Sprintf("Monday edition: covering Friday %s through now (%d hours)",
			start.Format("3pm"), int(now.Sub(start).Hours()))
		return w
	case time.Tuesday, time.Wednesday, time.Thursday:
		w := p.window(now.Add(-time.Duration(p.midweekHours)*time.Hour), now)
		w.Explanation = fmt.Sprintf("%s edition: last %d hours", day, p.midweekHours)
		return w
	default:
		w := p.window(now.Add(-time.Duration(p.defaultHours)*time.Hour), now)
		w.Explanation = fmt.Sprintf("%s is not a publish day: defaulting to last %d hours", day, p.defaultHours)
		return w
	}
}

// Fixed returns a window of the given length ending at now, overriding the
// weekday schedule.
func (p *Policy) Fixed(now time.Time, hours int) Window {
	w := p.window(now.Add(-time.Duration(hours)*time.Hour), now)
	w.Explanation = fmt.Sprintf("manual lookback: last %d hours", hours)
	return w
}

func (p *Policy) window(start, now time.Time) Window {
	return Window{
		Start: start.In(p.loc),
		End:   now.Add(p.skew).In(p.loc),
	}
}

// PublishDay reports whether the newsletter normally runs on now's weekday.
func (p *Policy) PublishDay(now time.Time) (bool, string) {
	day := now.In(p.loc).Weekday()
	switch day {
	case time.Monday, time.Tuesday, time.Wednesday, time.Thursday:
		return true, fmt.Sprintf("Today is %s - normal publish day", day)
	default:
		return false, fmt.Sprintf("Today is %s - not a normal publish day (runs Mon-Thu)", day)
	}
}

// Location is the policy's editorial timezone.
func (p *Policy) Location() *time.Location {
	return p.loc
}
