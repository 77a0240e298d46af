package habit

import "time"

// NextRun returns the next slot for a habit performed at tod every
// periodicityDays days, as seen from ref in loc. A slot equal to ref has not
// passed yet.
func NextRun(tod TimeOfDay, periodicityDays int, ref time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = ref.Location()
	}
	day := ref.In(loc)
	candidate := time.Date(day.Year(), day.Month(), day.Day(), tod.Hour, tod.Minute, tod.Second, 0, loc)
	if !ref.After(candidate) {
		return candidate
	}
	return candidate.AddDate(0, 0, periodicityDays)
}
