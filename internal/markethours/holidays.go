package markethours

import (
	"fmt"
	"time"
)

// NSE holidays for 2026.
// Source: NSE India official holiday list.
var nseHolidays2026 = []string{
	"2026-01-26", // Republic Day
	"2026-02-17", // Mahashivratri (tentative)
	"2026-03-14", // Holi
	"2026-03-31", // Id-ul-Fitr (Eid) (tentative)
	"2026-04-02", // Ram Navami (tentative)
	"2026-04-06", // Mahavir Jayanti
	"2026-04-10", // Good Friday
	"2026-04-14", // Dr. Ambedkar Jayanti
	"2026-05-01", // Maharashtra Day
	"2026-06-07", // Bakrid / Eid ul-Adha (tentative)
	"2026-07-06", // Muharram (tentative)
	"2026-08-15", // Independence Day
	"2026-08-16", // Janmashtami (tentative)
	"2026-09-05", // Milad-un-Nabi (tentative)
	"2026-10-02", // Mahatma Gandhi Jayanti
	"2026-10-20", // Dussehra
	"2026-10-21", // Dussehra (tentative)
	"2026-11-05", // Diwali / Lakshmi Puja (tentative)
	"2026-11-06", // Diwali Balipratipada (tentative)
	"2026-11-07", // Bhai Dooj (tentative)
	"2026-11-19", // Guru Nanak Jayanti
	"2026-12-25", // Christmas
}

const dateLayout = "2006-01-02"

// AddHolidays marks each YYYY-MM-DD date as closed.
func (c *Calendar) AddHolidays(dates ...string) error {
	for _, d := range dates {
		t, err := time.ParseInLocation(dateLayout, d, c.loc)
		if err != nil {
			return fmt.Errorf("holiday %q: %w", d, err)
		}
		c.holidays[t.Format(dateLayout)] = true
	}
	return nil
}

// IsHoliday returns true if the exchange-local date of t is a holiday.
func (c *Calendar) IsHoliday(t time.Time) bool {
	return c.holidays[t.In(c.loc).Format(dateLayout)]
}

// Holidays returns the number of configured holidays.
func (c *Calendar) Holidays() int { return len(c.holidays) }
