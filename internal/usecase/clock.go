package usecase

import "time"

// ISS publishes dates on the Moscow calendar.
var moscow = loadMoscow()

func loadMoscow() *time.Location {
	if loc, err := time.LoadLocation("Europe/Moscow"); err == nil {
		return loc
	}
	return time.FixedZone("MSK", 3*60*60)
}

func moscowNow() time.Time {
	return time.Now().In(moscow)
}
