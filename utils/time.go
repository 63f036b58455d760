// Package utils provides utility functions for the application.
package utils

import (
	"sync"
	"time"
)

// ServiceZone is the single timezone all job windows are computed in.
const ServiceZone = "Europe/London"

var (
	serviceLocOnce sync.Once
	serviceLoc     *time.Location
)

// UTCNow returns the current time in UTC
func UTCNow() time.Time {
	return time.Now().UTC()
}

// UTCNowPtr returns a pointer to the current time in UTC
func UTCNowPtr() *time.Time {
	now := UTCNow()
	return &now
}

// ServiceLocation returns the Europe/London location. If the zone database is
// unavailable it falls back to UTC rather than failing the process.
func ServiceLocation() *time.Location {
	serviceLocOnce.Do(func() {
		loc, err := time.LoadLocation(ServiceZone)
		if err != nil {
			loc = time.UTC
		}
		serviceLoc = loc
	})
	return serviceLoc
}

// DayWindow returns the half-open interval [midnight, next midnight) covering
// the calendar day of anchor in the service timezone.
func DayWindow(anchor time.Time) (time.Time, time.Time) {
	loc := ServiceLocation()
	a := anchor.In(loc)
	start := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, loc)
	return start.UTC(), start.AddDate(0, 0, 1).UTC()
}

// PreviousDayWindow returns the window for the calendar day before now.
func PreviousDayWindow(now time.Time) (time.Time, time.Time) {
	return DayWindow(now.In(ServiceLocation()).AddDate(0, 0, -1))
}

// PreviousHourWindow returns the half-open interval covering the clock hour
// before now in the service timezone.
func PreviousHourWindow(now time.Time) (time.Time, time.Time) {
	loc := ServiceLocation()
	n := now.In(loc)
	end := time.Date(n.Year(), n.Month(), n.Day(), n.Hour(), 0, 0, 0, loc)
	return end.Add(-time.Hour).UTC(), end.UTC()
}

// IsExpired checks if the given time is in the past (expired)
func IsExpired(t time.Time) bool {
	return UTCNow().After(t)
}
