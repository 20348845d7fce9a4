package ledger

type Status string

const (
	StatusPending Status = "pendente"
	// StatusMissed is terminal: retries were exhausted without a confirmation.
	StatusMissed Status = "perdido"
)

type Kind string

const (
	KindConfirm Kind = "confirmacao"
	KindCorrect Kind = "correcao"
	KindRevoke  Kind = "cancelamento"
)

// Ledger is the persisted document. Field names match historico.json.
type Ledger struct {
	Confirmations []ConfirmationEntry `json:"confirmacoes"`
	Pending       []PendingEntry      `json:"pendencias"`
}

// PendingEntry is a dose awaiting confirmation, keyed by (Medication, Date, Time).
type PendingEntry struct {
	Medication string `json:"remedio"`
	Time       string `json:"horario"`
	Date       string `json:"data"`
	Status     Status `json:"status"`
	// Attempts counts prompts of the retry ladder, starting at 1.
	Attempts int `json:"tentativas"`
	// Notices counts scheduled reminder sends folded into this entry.
	Notices int `json:"avisos,omitempty"`
}

// ConfirmationEntry is one event of the append-only confirmation log.
type ConfirmationEntry struct {
	ID         string `json:"id,omitempty"`
	Medication string `json:"remedio"`
	Date       string `json:"data"`
	// Slot is the scheduled time the event settles.
	Slot string `json:"horario,omitempty"`
	// Time is when the dose was actually taken.
	Time       string `json:"hora"`
	Confirmed  bool   `json:"confirmado"`
	Kind       Kind   `json:"tipo,omitempty"`
	RecordedAt string `json:"registrado_em,omitempty"`
}

func (e ConfirmationEntry) kind() Kind {
	if e.Kind != "" {
		return e.Kind
	}
	if e.Confirmed {
		return KindConfirm
	}

	return KindRevoke
}

// Taken is a dose currently considered confirmed after replaying the log.
type Taken struct {
	ID         string
	Medication string
	Date       string
	Slot       string
	Time       string
}

func (t Taken) slot() string {
	if t.Slot != "" {
		return t.Slot
	}

	return t.Time
}

type ConfirmRequest struct {
	Medication string
	Date       string
	Slot       string
	Time       string
}

type CorrectRequest struct {
	Medication string
	Date       string
	Time       string
	// Slot is used only when there is no confirmation to correct.
	Slot string
}

// Empty returns a ledger with no entries.
func Empty() *Ledger {
	return &Ledger{
		Confirmations: []ConfirmationEntry{},
		Pending:       []PendingEntry{},
	}
}

func (l *Ledger) normalize() *Ledger {
	if l.Confirmations == nil {
		l.Confirmations = []ConfirmationEntry{}
	}
	if l.Pending == nil {
		l.Pending = []PendingEntry{}
	}
	for i := range l.Pending {
		if l.Pending[i].Status == "" {
			l.Pending[i].Status = StatusPending
		}
	}

	return l
}

// Clone returns a deep copy.
func (l *Ledger) Clone() *Ledger {
	return &Ledger{
		Confirmations: append([]ConfirmationEntry{}, l.Confirmations...),
		Pending:       append([]PendingEntry{}, l.Pending...),
	}
}
