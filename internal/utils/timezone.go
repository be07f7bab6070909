package utils

import "time"

// LocationOrUTC loads the tenant's operating timezone, falling back to UTC
// on a missing or malformed name.
func LocationOrUTC(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

func CurrentDateInTimezone(tz string) string {
	return time.Now().In(LocationOrUTC(tz)).Format("2006-01-02")
}
