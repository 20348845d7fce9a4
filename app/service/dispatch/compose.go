package dispatch

import (
	"fmt"
	"medremind/app/service/schedule"
)

// Compose renders the reminder text for a trigger.
func Compose(trig schedule.Trigger) string {
	d := trig.Dose
	m := d.Medication

	var text string
	switch trig.Offset {
	case schedule.Before15:
		text = fmt.Sprintf("⏳ Em 15 minutos, tome *%s* - %s (%s).", d.Label(), m.Dosage, d.Time)
	case schedule.Before5:
		text = fmt.Sprintf("⚠️ Faltam 5 minutos para tomar *%s* - %s (%s).", d.Label(), m.Dosage, d.Time)
	default:
		text = fmt.Sprintf("🚨 Hora de tomar *%s* - %s! Tome com água. (%s)", d.Label(), m.Dosage, d.Time)
	}

	if m.Note != "" {
		text += "\n📌 Obs: " + m.Note
	}

	return text
}
