// Package session classifies wall-clock time into US equity trading
// sessions. Boundaries follow Eastern Time regardless of where the process
// runs.
package session

import (
	"time"

	"github.com/scmhub/calendar"

	"github.com/peter-kozarec/terminus/pkg/model"
)

type Session int

const (
	SessionClosed Session = iota
	SessionPreMarket
	SessionRegular
	SessionAfterHours
)

var sessionNames = map[Session]string{
	SessionClosed:     "CLOSED",
	SessionPreMarket:  "PRE_MARKET",
	SessionRegular:    "REGULAR",
	SessionAfterHours: "AFTER_HOURS",
}

func (s Session) String() string {
	if name, ok := sessionNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// Session boundaries in minutes after midnight ET: 04:00, 09:30, 16:00,
// 20:00.
const (
	preMarketOpen = 4 * 60
	regularOpen   = 9*60 + 30
	regularClose  = 16 * 60
	afterHoursEnd = 20 * 60
)

// Clock resolves trading sessions against the exchange calendar. The zero
// value is not usable; use NewClock.
type Clock struct {
	cal *calendar.Calendar
	loc *time.Location
}

func NewClock() *Clock {
	c := &Clock{cal: calendar.GetCalendar("xnys")}
	if c.cal != nil {
		c.loc = c.cal.Loc
	}
	if c.loc == nil {
		loc, err := time.LoadLocation("America/New_York")
		if err != nil {
			loc = time.FixedZone("ET", -5*3600)
		}
		c.loc = loc
	}
	return c
}

// Current classifies now.
func (c *Clock) Current() Session {
	return c.At(time.Now())
}

// At classifies the given instant.
func (c *Clock) At(t time.Time) Session {
	t = t.In(c.loc)
	if !c.isTradingDay(t) {
		return SessionClosed
	}

	minutes := t.Hour()*60 + t.Minute()
	switch {
	case minutes < preMarketOpen:
		return SessionClosed
	case minutes < regularOpen:
		return SessionPreMarket
	case minutes < regularClose:
		return SessionRegular
	case minutes < afterHoursEnd:
		return SessionAfterHours
	}
	return SessionClosed
}

// isTradingDay consults the exchange calendar, falling back to a weekday
// check when the calendar is unavailable.
func (c *Clock) isTradingDay(t time.Time) bool {
	if c.cal != nil {
		return c.cal.IsBusinessDay(t)
	}
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// OrderTypeAllowed reports whether the terminal accepts the order type in
// the session. Extended hours take limit orders only; nothing trades while
// closed.
func (c *Clock) OrderTypeAllowed(t time.Time, orderType model.OrderType) bool {
	switch c.At(t) {
	case SessionRegular:
		return true
	case SessionPreMarket, SessionAfterHours:
		return orderType == model.OrderTypeLimit
	}
	return false
}

// NextOpen returns the next regular session open at or after t.
func (c *Clock) NextOpen(t time.Time) time.Time {
	t = t.In(c.loc)
	day := time.Date(t.Year(), t.Month(), t.Day(), regularOpen/60, regularOpen%60, 0, 0, c.loc)
	if !t.Before(day) {
		day = day.AddDate(0, 0, 1)
	}
	for i := 0; i < 14; i++ {
		if c.isTradingDay(day) {
			return day
		}
		day = day.AddDate(0, 0, 1)
	}
	return day
}
