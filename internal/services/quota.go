package membership

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/juju/clock"
)

const (
	DefaultTimezone = "Asia/Tokyo"
	dayKeyLayout    = "2006/01/02"
)

// Бизнес-день в фиксированной таймзоне, одинаковый для всех клиентов
type BusinessDay struct {
	clock clock.Clock
	loc   *time.Location
}

func NewBusinessDay(clk clock.Clock, timezone string) (*BusinessDay, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", timezone, err)
	}
	return &BusinessDay{clk, loc}, nil
}

func (b *BusinessDay) TodayKey() string {
	return DayKey(b.clock.Now(), b.loc)
}

func (b *BusinessDay) Now() time.Time {
	return b.clock.Now()
}

func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dayKeyLayout)
}
