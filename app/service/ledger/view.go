package ledger

import (
	"medremind/app/service/schedule"
	"strings"

	"github.com/elliotchance/pie/v2"
)

func sameMedication(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Taken replays the confirmation log of one day and returns the doses
// still considered confirmed, in storage order.
func (l *Ledger) Taken(date string) []Taken {
	var active []Taken

	for _, e := range l.Confirmations {
		if e.Date != date {
			continue
		}

		switch e.kind() {
		case KindConfirm:
			active = append(active, takenFrom(e))
		case KindCorrect:
			idx := lastIndex(active, e.Medication)
			if idx < 0 {
				active = append(active, takenFrom(e))
				continue
			}
			active[idx].Time = e.Time
		case KindRevoke:
			active = pie.Filter(active, func(t Taken) bool {
				return !sameMedication(t.Medication, e.Medication)
			})
		}
	}

	return active
}

func takenFrom(e ConfirmationEntry) Taken {
	return Taken{
		ID:         e.ID,
		Medication: e.Medication,
		Date:       e.Date,
		Slot:       e.Slot,
		Time:       e.Time,
	}
}

func lastIndex(active []Taken, medication string) int {
	for i := len(active) - 1; i >= 0; i-- {
		if sameMedication(active[i].Medication, medication) {
			return i
		}
	}

	return -1
}

// TakenBetween returns confirmed doses for dates in [from, to], grouped by
// date ascending.
func (l *Ledger) TakenBetween(from, to string) map[string][]Taken {
	dates := pie.Unique(pie.Map(l.Confirmations, func(e ConfirmationEntry) string {
		return e.Date
	}))

	result := make(map[string][]Taken)
	for _, date := range dates {
		if date < from || date > to {
			continue
		}

		if taken := l.Taken(date); len(taken) > 0 {
			result[date] = taken
		}
	}

	return result
}

// IsSettled reports whether any confirmation is active for the medication on date.
func (l *Ledger) IsSettled(medication, date string) bool {
	return lastIndex(l.Taken(date), medication) >= 0
}

// SlotTaken reports whether the scheduled slot of a medication is confirmed.
func (l *Ledger) SlotTaken(medication, date, slot string) bool {
	for _, t := range l.Taken(date) {
		if sameMedication(t.Medication, medication) && t.slot() == slot {
			return true
		}
	}

	return false
}

// Outstanding keeps the doses whose slot has no active confirmation,
// sorted by display string.
func (l *Ledger) Outstanding(doses []schedule.Dose) []schedule.Dose {
	result := pie.Filter(doses, func(d schedule.Dose) bool {
		return !l.SlotTaken(d.Medication.Name, d.Date, d.Time)
	})

	return pie.SortStableUsing(result, func(a, b schedule.Dose) bool {
		return a.Display() < b.Display()
	})
}

// PendingOn returns the entries of a day with the given status, oldest slot first.
func (l *Ledger) PendingOn(date string, status Status) []PendingEntry {
	entries := pie.Filter(l.Pending, func(p PendingEntry) bool {
		return p.Date == date && p.Status == status
	})

	return pie.SortStableUsing(entries, func(a, b PendingEntry) bool {
		return a.Time < b.Time
	})
}

func (l *Ledger) findPending(medication, date, slot string) int {
	for i, p := range l.Pending {
		if p.Medication == medication && p.Date == date && p.Time == slot {
			return i
		}
	}

	return -1
}

func (l *Ledger) removePending(medication, date string) int {
	before := len(l.Pending)

	l.Pending = pie.Filter(l.Pending, func(p PendingEntry) bool {
		return !(sameMedication(p.Medication, medication) && p.Date == date)
	})

	return before - len(l.Pending)
}
