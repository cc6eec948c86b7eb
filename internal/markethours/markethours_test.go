package markethours

import (
	"testing"
	"time"
)

func ist(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, IST)
}

func TestNSE_IsTradingDay(t *testing.T) {
	c := NSE()
	cases := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"monday", ist(2026, time.January, 5, 10, 0), true},
		{"saturday", ist(2026, time.January, 3, 10, 0), false},
		{"sunday", ist(2026, time.January, 4, 10, 0), false},
		{"republic day", ist(2026, time.January, 26, 10, 0), false},
		{"christmas", ist(2026, time.December, 25, 10, 0), false},
		// 2026-01-25 20:00 UTC is already Monday the 26th in IST.
		{"utc evening before holiday", time.Date(2026, time.January, 25, 20, 0, 0, 0, time.UTC), false},
	}
	for _, tc := range cases {
		if got := c.IsTradingDay(tc.t); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestNSE_IsOpenAndSessionClosed(t *testing.T) {
	c := NSE()
	cases := []struct {
		t          time.Time
		open       bool
		sessionEnd bool
	}{
		{ist(2026, time.January, 5, 9, 14), false, false},
		{ist(2026, time.January, 5, 9, 15), true, false},
		{ist(2026, time.January, 5, 15, 29), true, false},
		{ist(2026, time.January, 5, 15, 30), false, true},
		{ist(2026, time.January, 5, 18, 0), false, true},
		{ist(2026, time.January, 3, 18, 0), false, false},
	}
	for _, tc := range cases {
		if got := c.IsOpen(tc.t); got != tc.open {
			t.Errorf("IsOpen(%s): got %v", tc.t.Format(time.RFC3339), got)
		}
		if got := c.SessionClosed(tc.t); got != tc.sessionEnd {
			t.Errorf("SessionClosed(%s): got %v", tc.t.Format(time.RFC3339), got)
		}
	}
}

func TestNSE_NextOpen(t *testing.T) {
	c := NSE()
	cases := []struct {
		name string
		from time.Time
		want time.Time
	}{
		{"before open", ist(2026, time.January, 5, 8, 0), ist(2026, time.January, 5, 9, 15)},
		{"after close", ist(2026, time.January, 5, 16, 0), ist(2026, time.January, 6, 9, 15)},
		{"friday evening", ist(2026, time.January, 9, 16, 0), ist(2026, time.January, 12, 9, 15)},
		{"over holiday weekend", ist(2026, time.January, 23, 16, 0), ist(2026, time.January, 27, 9, 15)},
	}
	for _, tc := range cases {
		if got := c.NextOpen(tc.from); !got.Equal(tc.want) {
			t.Errorf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestCalendar_AddHolidays(t *testing.T) {
	c := NSE()
	n := c.Holidays()
	if err := c.AddHolidays("2027-01-26"); err != nil {
		t.Fatal(err)
	}
	if c.Holidays() != n+1 || c.IsTradingDay(ist(2027, time.January, 26, 10, 0)) {
		t.Error("added holiday not honoured")
	}
	if err := c.AddHolidays("26/01/2027"); err == nil {
		t.Error("accepted malformed date")
	}
}

func TestAlwaysOpen(t *testing.T) {
	c, err := ByName("crypto")
	if err != nil {
		t.Fatal(err)
	}
	sat := time.Date(2026, time.January, 3, 3, 0, 0, 0, time.UTC)
	if !c.IsTradingDay(sat) || !c.IsOpen(sat) {
		t.Error("24x7 calendar closed on a Saturday")
	}
	if _, err := ByName("nyse"); err == nil {
		t.Error("unknown calendar accepted")
	}
}

func TestStatusString(t *testing.T) {
	c := NSE()
	if got, want := c.StatusString(ist(2026, time.January, 5, 14, 0)), "NSE open, closes in 1h30m"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got, want := c.StatusString(ist(2026, time.January, 9, 16, 0)), "NSE closed, opens Mon 09:15 (65h15m)"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
