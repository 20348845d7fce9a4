package schedule

import (
	"fmt"
	"time"
)

type Frequency string

const (
	Daily  Frequency = "diario"
	Weekly Frequency = "semanal"
)

// DaysPerMonth converts duracao_meses into a window length.
const DaysPerMonth = 30

type DoseTime struct {
	Time   string `json:"hora" validate:"required"`
	Period string `json:"periodo,omitempty"`
}

type Medication struct {
	Name           string     `json:"nome" validate:"required"`
	Dosage         string     `json:"dosagem"`
	StartDate      string     `json:"data_inicio" validate:"required"`
	DurationMonths float64    `json:"duracao_meses" validate:"gte=0"`
	Frequency      Frequency  `json:"frequencia" validate:"required"`
	Times          []DoseTime `json:"horarios" validate:"dive"`
	Note           string     `json:"obs,omitempty"`

	start time.Time
}

// Dose is one scheduled administration of a medication on a calendar day.
type Dose struct {
	Medication *Medication
	Date       string
	Time       string
	Period     string
	At         time.Time
}

// Label is the medication name with its period tag, if any.
func (d Dose) Label() string {
	if d.Period == "" {
		return d.Medication.Name
	}

	return fmt.Sprintf("%s (%s)", d.Medication.Name, d.Period)
}

// Display is the line used in pending lists.
func (d Dose) Display() string {
	return fmt.Sprintf("%s às %s", d.Label(), d.Time)
}

// Trigger is a reminder due at the current minute.
type Trigger struct {
	Dose   Dose
	Offset Offset
}

type Offset int

const (
	Before15 Offset = 15
	Before5  Offset = 5
	AtDose   Offset = 0
)

var Offsets = []Offset{Before15, Before5, AtDose}

func (o Offset) Duration() time.Duration {
	return time.Duration(o) * time.Minute
}

func (o Offset) String() string {
	if o == AtDose {
		return "agora"
	}

	return fmt.Sprintf("%dmin", int(o))
}
