package marketdata

import (
	"time"

	"github.com/scmhub/calendar"

	"github.com/danielhan-dev/strikescan/pkg/logger"
)

// Clock answers trading-hours questions for one exchange using its MIC
// calendar. The calendar carries the exchange's real time zone, so DST
// transitions are handled by the zone database rather than a fixed offset.
type Clock struct {
	cal      *calendar.Calendar
	loc      *time.Location
	fallback bool
}

// NewClock builds a clock for an ISO 10383 MIC (e.g. "xnys"). When the MIC
// is unknown it falls back to NYSE hours in America/New_York.
func NewClock(mic string, log *logger.Logger) *Clock {
	cal := calendar.GetCalendar(mic)
	if cal == nil {
		cal = calendar.GetCalendar("xnys")
	}
	if cal == nil {
		log.WithField("mic", mic).Warn("No calendar for MIC, using weekday 09:30-16:00 New York fallback")
		loc, err := time.LoadLocation("America/New_York")
		if err != nil {
			loc = time.UTC
		}
		return &Clock{fallback: true, loc: loc}
	}

	return &Clock{cal: cal, loc: cal.Loc}
}

// Location returns the exchange's time zone.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// IsTradingDay reports whether t falls on a trading day.
func (c *Clock) IsTradingDay(t time.Time) bool {
	t = t.In(c.loc)
	if c.fallback {
		wd := t.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	}
	return c.cal.IsBusinessDay(t)
}

// IsOpen reports whether the exchange session is open at t.
func (c *Clock) IsOpen(t time.Time) bool {
	t = t.In(c.loc)
	if c.fallback {
		if !c.IsTradingDay(t) {
			return false
		}
		hour, minute := t.Hour(), t.Minute()
		return (hour > 9 || (hour == 9 && minute >= 30)) && hour < 16
	}
	return c.cal.IsOpen(t)
}
