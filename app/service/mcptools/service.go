package mcptools

import (
	"context"
	"fmt"
	"medremind/app/service/interpreter"
	"medremind/app/service/ledger"
	"medremind/app/service/schedule"
	"medremind/app/util/clock"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/samber/do"
)

const (
	serverName    = "medremind"
	serverVersion = "1.0.0"
)

// Doses is the dose bookkeeping the tools expose.
type Doses interface {
	PendingToday(ctx context.Context) []schedule.Dose
	ConfirmedToday(ctx context.Context) []ledger.Taken
	ConfirmDose(ctx context.Context, name, at string) (ledger.ConfirmationEntry, error)
	UndoDose(ctx context.Context, name string) (int, error)
	ResolveMedication(raw string) string
}

type Service struct {
	server *server.MCPServer
	doses  Doses
}

func New(di *do.Injector) (*Service, error) {
	return NewService(do.MustInvoke[*interpreter.Service](di)), nil
}

func NewService(doses Doses) *Service {
	s := &Service{
		server: server.NewMCPServer(
			serverName,
			serverVersion,
			server.WithToolCapabilities(true),
			server.WithRecovery(),
			server.WithInstructions("Tools to inspect and update today's medication doses of the patient."),
		),
		doses: doses,
	}

	s.server.AddTool(mcp.NewTool("pending_today",
		mcp.WithDescription("List today's scheduled doses that were not confirmed yet."),
	), s.pendingToday)

	s.server.AddTool(mcp.NewTool("confirmed_today",
		mcp.WithDescription("List the doses confirmed today."),
	), s.confirmedToday)

	s.server.AddTool(mcp.NewTool("confirm_dose",
		mcp.WithDescription("Record that the patient took a medication today."),
		mcp.WithString("medication", mcp.Required(), mcp.Description("Medication name, fuzzy matched")),
		mcp.WithString("time", mcp.Description("Time taken as HH:MM, defaults to now")),
	), s.confirmDose)

	s.server.AddTool(mcp.NewTool("undo_dose",
		mcp.WithDescription("Withdraw today's confirmations of a medication."),
		mcp.WithString("medication", mcp.Required(), mcp.Description("Medication name, fuzzy matched")),
	), s.undoDose)

	return s
}

func (s *Service) Server() *server.MCPServer {
	return s.server
}

// ServeStdio serves the tools over stdin/stdout until the input closes.
func (s *Service) ServeStdio() error {
	return server.ServeStdio(s.server)
}

func (s *Service) pendingToday(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doses := s.doses.PendingToday(ctx)
	if len(doses) == 0 {
		return mcp.NewToolResultText("No pending doses today."), nil
	}

	lines := make([]string, 0, len(doses))
	for _, d := range doses {
		lines = append(lines, fmt.Sprintf("%s - %s", d.Display(), d.Medication.Dosage))
	}

	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Service) confirmedToday(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taken := s.doses.ConfirmedToday(ctx)
	if len(taken) == 0 {
		return mcp.NewToolResultText("No doses confirmed today."), nil
	}

	lines := make([]string, 0, len(taken))
	for _, t := range taken {
		lines = append(lines, fmt.Sprintf("%s at %s", t.Medication, t.Time))
	}

	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Service) confirmDose(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("medication")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	at := strings.TrimSpace(req.GetString("time", ""))
	if at != "" {
		parsed, err := time.Parse(clock.MinuteLayout, at)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid time %q, expected HH:MM", at)), nil
		}
		at = clock.Minute(parsed)
	}

	entry, err := s.doses.ConfirmDose(ctx, s.doses.ResolveMedication(raw), at)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to confirm dose: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Confirmed %s at %s (slot %s).", entry.Medication, entry.Time, entry.Slot)), nil
}

func (s *Service) undoDose(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("medication")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	name := s.doses.ResolveMedication(raw)

	count, err := s.doses.UndoDose(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to undo dose: %v", err)), nil
	}

	if count == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("%s had no confirmation today.", name)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Withdrew %d confirmation(s) of %s.", count, name)), nil
}
