package schedule

import (
	"medremind/app/util/clock"
	"time"
)

// InWindow reports whether day lies inside the treatment window
// [start, start + int(months*30) days], both ends inclusive.
func (m *Medication) InWindow(day time.Time) bool {
	start := m.startIn(day.Location())
	end := start.AddDate(0, 0, int(m.DurationMonths*DaysPerMonth))
	day = clock.Midnight(day)

	return !day.Before(start) && !day.After(end)
}

// ActiveOn reports whether the medication has doses on day.
func (m *Medication) ActiveOn(day time.Time) bool {
	if !m.InWindow(day) {
		return false
	}

	switch m.Frequency {
	case Daily:
		return true
	case Weekly:
		return daysBetween(m.startIn(day.Location()), clock.Midnight(day))%7 == 0
	default:
		return false
	}
}

func (m *Medication) startIn(loc *time.Location) time.Time {
	y, mo, d := m.start.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, loc)
}

func daysBetween(from, to time.Time) int {
	// calendar days; immune to DST shifts
	a := time.Date(from.Year(), from.Month(), from.Day(), 12, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 12, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// ActiveDoses returns the doses of the given calendar day in schedule order.
func ActiveDoses(meds []*Medication, day time.Time) []Dose {
	var result []Dose

	date := clock.Date(day)
	loc := day.Location()

	for _, m := range meds {
		if !m.ActiveOn(day) {
			continue
		}

		for _, t := range m.Times {
			at, err := clock.At(date, t.Time, loc)
			if err != nil {
				continue
			}

			result = append(result, Dose{
				Medication: m,
				Date:       date,
				Time:       t.Time,
				Period:     t.Period,
				At:         at,
			})
		}
	}

	return result
}

// DueTriggers returns the reminders whose trigger minute equals now.
// Tomorrow's doses are included so early-morning doses are announced
// before midnight.
func DueTriggers(meds []*Medication, now time.Time) []Trigger {
	minute := now.Truncate(time.Minute)
	today := clock.Midnight(now)

	var result []Trigger

	for _, day := range []time.Time{today, today.AddDate(0, 0, 1)} {
		for _, dose := range ActiveDoses(meds, day) {
			for _, offset := range Offsets {
				if dose.At.Add(-offset.Duration()).Equal(minute) {
					result = append(result, Trigger{Dose: dose, Offset: offset})
				}
			}
		}
	}

	return result
}

// FindDose returns the active dose of a medication at a slot time.
func FindDose(meds []*Medication, day time.Time, name, slot string) (Dose, bool) {
	for _, d := range ActiveDoses(meds, day) {
		if d.Medication.Name == name && d.Time == slot {
			return d, true
		}
	}

	return Dose{}, false
}
