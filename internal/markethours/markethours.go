// Package markethours knows when an exchange trades, so scheduled scans
// only run on sessions that produced a new daily bar.
package markethours

import (
	"fmt"
	"strings"
	"time"
)

// IST is the Indian Standard Time location (UTC+5:30).
var IST = time.FixedZone("IST", 5*3600+30*60)

// Calendar describes one exchange's regular session and closed days.
type Calendar struct {
	name     string
	loc      *time.Location
	open     int // minutes after local midnight
	close    int
	weekends bool // closed on Saturday and Sunday
	holidays map[string]bool
}

// NSE returns the National Stock Exchange of India calendar
// (9:15 AM - 3:30 PM IST, Mon-Fri, excluding holidays).
func NSE() *Calendar {
	c := &Calendar{
		name:     "NSE",
		loc:      IST,
		open:     9*60 + 15,
		close:    15*60 + 30,
		weekends: true,
		holidays: make(map[string]bool, len(nseHolidays2026)),
	}
	if err := c.AddHolidays(nseHolidays2026...); err != nil {
		panic(err)
	}
	return c
}

// AlwaysOpen returns a calendar that trades around the clock, for crypto.
func AlwaysOpen() *Calendar {
	return &Calendar{name: "24x7", loc: time.UTC, open: 0, close: 24 * 60, holidays: map[string]bool{}}
}

// ByName returns the calendar for "nse" or "24x7"/"crypto".
func ByName(name string) (*Calendar, error) {
	switch strings.ToLower(name) {
	case "", "nse":
		return NSE(), nil
	case "24x7", "crypto", "always":
		return AlwaysOpen(), nil
	default:
		return nil, fmt.Errorf("unknown market calendar %q", name)
	}
}

func (c *Calendar) Name() string { return c.name }

// Location returns the exchange's time zone.
func (c *Calendar) Location() *time.Location { return c.loc }

// IsTradingDay returns true if t's local date is a weekday (when weekends
// are closed) and not a holiday.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	local := t.In(c.loc)
	if c.weekends {
		if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
			return false
		}
	}
	return !c.IsHoliday(local)
}

// IsOpen returns true if t falls within the regular session.
func (c *Calendar) IsOpen(t time.Time) bool {
	if !c.IsTradingDay(t) {
		return false
	}
	m := minuteOfDay(t.In(c.loc))
	return m >= c.open && m < c.close
}

// SessionClosed returns true once the session of a trading day has ended,
// i.e. today's daily bar is final.
func (c *Calendar) SessionClosed(t time.Time) bool {
	return c.IsTradingDay(t) && minuteOfDay(t.In(c.loc)) >= c.close
}

// NextOpen returns the next session open at or after t.
func (c *Calendar) NextOpen(t time.Time) time.Time {
	local := t.In(c.loc)
	today := c.at(local, c.open)
	if local.Before(today) && c.IsTradingDay(local) {
		return today
	}
	d := local
	for i := 0; i < 14; i++ { // weekends + holiday clusters
		d = d.AddDate(0, 0, 1)
		if c.IsTradingDay(d) {
			return c.at(d, c.open)
		}
	}
	return c.at(local.AddDate(0, 0, 1), c.open)
}

// TodayClose returns the close of t's local day.
func (c *Calendar) TodayClose(t time.Time) time.Time {
	return c.at(t.In(c.loc), c.close)
}

// StatusString returns a human-readable market status.
func (c *Calendar) StatusString(t time.Time) string {
	if c.IsOpen(t) {
		return fmt.Sprintf("%s open, closes in %s", c.name, fmtDur(c.TodayClose(t).Sub(t)))
	}
	next := c.NextOpen(t)
	local := next.In(c.loc)
	return fmt.Sprintf("%s closed, opens %s %s (%s)",
		c.name, local.Weekday().String()[:3], local.Format("15:04"), fmtDur(next.Sub(t)))
}

func (c *Calendar) at(day time.Time, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), minute/60, minute%60, 0, 0, c.loc)
}

func minuteOfDay(t time.Time) int { return t.Hour()*60 + t.Minute() }

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
