package interpreter

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const historySize = 20

type turn struct {
	Intent     Intent
	Medication string
	Time       string
	Timestamp  time.Time
}

// History is the soft per-sender context: recent intents and the
// medications they touched. It is never persisted.
type History struct {
	mu      sync.Mutex
	senders map[string][]turn
}

func NewHistory() *History {
	return &History{senders: make(map[string][]turn)}
}

func (h *History) add(sender string, t turn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	turns := h.senders[sender]
	if len(turns) >= historySize {
		turns = append(turns[1:], t)
	} else {
		turns = append(turns, t)
	}
	h.senders[sender] = turns
}

// lastMedication returns the most recent medication the sender referred to.
func (h *History) lastMedication(sender string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	turns := h.senders[sender]
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Medication != "" {
			return turns[i].Medication, true
		}
	}

	return "", false
}

func (h *History) format(sender string) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	turns := h.senders[sender]
	if len(turns) == 0 {
		return "sem histórico"
	}

	var builder strings.Builder
	for _, t := range turns {
		builder.WriteString(fmt.Sprintf("%s - %s %s %s\n", t.Timestamp.Format("15:04:05"), t.Intent, t.Medication, t.Time))
	}

	return builder.String()
}
