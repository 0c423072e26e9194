package scheduler

import "time"

// Session classifies the market day into the three cadence tiers.
type Session int

const (
	SessionClosed Session = iota
	SessionExtended
	SessionRegular
)

func (s Session) String() string {
	switch s {
	case SessionRegular:
		return "regular"
	case SessionExtended:
		return "extended"
	default:
		return "closed"
	}
}

// Session boundaries in minutes from midnight, exchange local time.
const (
	preMarketOpen = 4 * 60    // 04:00
	regularOpen   = 9*60 + 30 // 09:30
	regularClose  = 16 * 60   // 16:00
	afterHoursEnd = 20 * 60   // 20:00
)

// CurrentSession classifies t against the US equity session calendar.
func CurrentSession(t time.Time, loc *time.Location) Session {
	t = t.In(loc)

	weekday := t.Weekday()
	if weekday == time.Saturday || weekday == time.Sunday {
		return SessionClosed
	}

	minutes := t.Hour()*60 + t.Minute()
	switch {
	case minutes >= regularOpen && minutes < regularClose:
		return SessionRegular
	case minutes >= preMarketOpen && minutes < regularOpen:
		return SessionExtended
	case minutes >= regularClose && minutes < afterHoursEnd:
		return SessionExtended
	default:
		return SessionClosed
	}
}
