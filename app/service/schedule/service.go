package schedule

import (
	"encoding/json"
	"log/slog"
	"medremind/app/config"
	"medremind/app/util/clock"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/elliotchance/pie/v2"
	"github.com/go-playground/validator/v10"
	"github.com/samber/do"
	"github.com/samber/oops"
)

// Service reads the medication schedule. The file is edited externally,
// so it is re-read on every call; the last good copy is kept if a read fails.
type Service struct {
	path     string
	validate *validator.Validate

	mu   sync.RWMutex
	last []*Medication
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)
	return NewService(cfg.Files.Medications), nil
}

func NewService(path string) *Service {
	return &Service{
		path:     path,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (s *Service) Medications() []*Medication {
	data, err := os.ReadFile(s.path)
	if err != nil {
		slog.Error("Failed to read medication schedule", "path", s.path, "error", err)
		return s.cached()
	}

	meds, err := s.Parse(data)
	if err != nil {
		slog.Error("Failed to parse medication schedule", "path", s.path, "error", err)
		return s.cached()
	}

	s.mu.Lock()
	s.last = meds
	s.mu.Unlock()

	return meds
}

// Names lists the known medication names in schedule order.
func (s *Service) Names() []string {
	return pie.Map(s.Medications(), func(m *Medication) string {
		return m.Name
	})
}

func (s *Service) cached() []*Medication {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.last
}

// Parse decodes a schedule document, skipping invalid items.
func (s *Service) Parse(data []byte) ([]*Medication, error) {
	var raw []*Medication
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, oops.Errorf("failed to decode schedule: %w", err)
	}

	result := make([]*Medication, 0, len(raw))
	for i, m := range raw {
		if m == nil {
			slog.Warn("Skipping empty medication entry", "index", i)
			continue
		}

		if err := s.prepare(m); err != nil {
			slog.Warn("Skipping medication", "name", m.Name, "error", err)
			continue
		}

		result = append(result, m)
	}

	return result, nil
}

func (s *Service) prepare(m *Medication) error {
	m.Name = strings.TrimSpace(m.Name)

	if err := s.validate.Struct(m); err != nil {
		return oops.Errorf("invalid medication: %w", err)
	}

	start, err := time.Parse(clock.DateLayout, m.StartDate)
	if err != nil {
		return oops.Errorf("invalid data_inicio %q: %w", m.StartDate, err)
	}
	m.start = start

	switch strings.ToLower(string(m.Frequency)) {
	case string(Daily), "daily", "diária", "diaria":
		m.Frequency = Daily
	case string(Weekly), "weekly":
		m.Frequency = Weekly
	default:
		return oops.Errorf("unknown frequencia %q", m.Frequency)
	}

	times := make([]DoseTime, 0, len(m.Times))
	for _, t := range m.Times {
		parsed, err := time.Parse(clock.MinuteLayout, strings.TrimSpace(t.Time))
		if err != nil {
			slog.Warn("Skipping dose time", "name", m.Name, "time", t.Time, "error", err)
			continue
		}

		t.Time = clock.Minute(parsed)
		times = append(times, t)
	}
	m.Times = times

	return nil
}

// Source provides the current medication list.
type Source interface {
	Medications() []*Medication
}

// Static is a fixed medication list.
type Static []*Medication

func (s Static) Medications() []*Medication {
	return s
}
