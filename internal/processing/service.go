// Package processing runs ledger commands: it parses member messages, turns them into
// ledger updates, commits them and archives what happened.
package processing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"guild_ledger/internal/audit"
	"guild_ledger/internal/ledger"
	"guild_ledger/internal/templates"
)

// Service is the command layer shared by the CLI and the HTTP API.
type Service struct {
	ledger    *ledger.Ledger
	resolver  Resolver
	planner   *Planner
	audit     audit.Sink
	guild     string
	maxPoints int
}

// NewService wires the command layer. A nil sink disables archiving.
func NewService(l *ledger.Ledger, resolver Resolver, sink audit.Sink, guild string) *Service {
	maxPoints := l.Config().MaxPointsPerLog
	if maxPoints <= 0 {
		maxPoints = templates.MaxPoints
	}
	return &Service{
		ledger:    l,
		resolver:  resolver,
		planner:   NewPlanner(resolver, l.Rows(), maxPoints),
		audit:     sink,
		guild:     guild,
		maxPoints: maxPoints,
	}
}

// EventOutcome describes a logged event.
type EventOutcome struct {
	Record templates.EventRecord
	Plan   Plan
	Result ledger.CommitResult
}

// LogEvent parses an event log, credits everyone in it and archives the command.
// Members that cannot be resolved or located are reported, not fatal, unless nobody
// in the event resolves. The error is non-nil when parsing fails, when no member
// resolves, or when a section write fails.
func (s *Service) LogEvent(ctx context.Context, actor, text string) (EventOutcome, error) {
	record, err := templates.ParseEventLog(text)
	if err != nil {
		return EventOutcome{}, err
	}

	plan, err := s.planner.Plan(ctx, record)
	if err != nil {
		return EventOutcome{Record: record}, fmt.Errorf("failed to plan event: %w", err)
	}
	if len(plan.Updates) == 0 && len(plan.Unresolved) > 0 {
		errs := make([]error, 0, len(plan.Unresolved))
		for _, u := range plan.Unresolved {
			errs = append(errs, u.Err)
		}
		log.Warn().
			Str("actor", actor).
			Str("event", record.EventType).
			Int("unresolved", len(plan.Unresolved)).
			Msg("No event member could be resolved")
		return EventOutcome{Record: record, Plan: plan}, fmt.Errorf("no event member could be resolved: %w", errors.Join(errs...))
	}

	result, commitErr := s.ledger.CommitSnapshots(ctx, plan.Updates, plan.Snapshots)
	outcome := EventOutcome{Record: record, Plan: plan, Result: result}

	log.Info().
		Str("actor", actor).
		Str("event", record.EventType).
		Str("point_type", record.PointType).
		Int("points", record.PointValue).
		Int("applied", len(result.Applied)).
		Int("skipped", len(result.Skipped)).
		Int("unresolved", len(plan.Unresolved)).
		Msg("Event logged")

	s.archive(ctx, "logevent", actor, map[string]string{
		"event":      record.EventType,
		"point_type": record.PointType,
		"points":     strconv.Itoa(record.PointValue),
		"host":       record.Host,
		"applied":    strconv.Itoa(len(result.Applied)),
		"skipped":    strconv.Itoa(len(result.Skipped)),
		"failed":     strconv.Itoa(len(result.Failed)),
		"unresolved": strconv.Itoa(len(plan.Unresolved)),
	})
	return outcome, commitErr
}

// PointsOutcome describes a manual point adjustment.
type PointsOutcome struct {
	Username string
	Header   string
	Amount   int
	IsAdd    bool
	Applied  bool
}

// AddPoints credits amount of header to target, a mention or a display name.
func (s *Service) AddPoints(ctx context.Context, actor, target, header string, amount int) (PointsOutcome, error) {
	return s.adjust(ctx, actor, target, header, amount, true)
}

// RemovePoints debits amount of header from target. Totals never drop below zero.
func (s *Service) RemovePoints(ctx context.Context, actor, target, header string, amount int) (PointsOutcome, error) {
	return s.adjust(ctx, actor, target, header, amount, false)
}

func (s *Service) adjust(ctx context.Context, actor, target, header string, amount int, isAdd bool) (PointsOutcome, error) {
	if err := s.ValidateAmount(amount); err != nil {
		return PointsOutcome{}, err
	}
	username, err := s.resolver.Resolve(ctx, target)
	if err != nil {
		return PointsOutcome{}, err
	}

	outcome := PointsOutcome{Username: username, Header: header, Amount: amount, IsAdd: isAdd}
	if isAdd {
		outcome.Applied, err = s.ledger.AddPoints(ctx, username, header, amount)
	} else {
		outcome.Applied, err = s.ledger.RemovePoints(ctx, username, header, amount)
	}
	if err != nil {
		return outcome, err
	}

	command := "add" + strings.ToLower(header)
	if !isAdd {
		command = "remove" + strings.ToLower(header)
	}
	s.archive(ctx, command, actor, map[string]string{
		"user":    username,
		"amount":  strconv.Itoa(amount),
		"applied": strconv.FormatBool(outcome.Applied),
	})
	return outcome, nil
}

// ValidateAmount checks a manual adjustment is between 1 and the per-log maximum.
func (s *Service) ValidateAmount(amount int) error {
	if amount < 1 || amount > s.maxPoints {
		return fmt.Errorf("%w: %d is outside 1-%d", ledger.ErrInvalidAmount, amount, s.maxPoints)
	}
	return nil
}

// Inspect shows target's ledger row. The bool is false when they have none.
func (s *Service) Inspect(ctx context.Context, actor, target string) (ledger.Profile, bool, error) {
	username, err := s.resolver.Resolve(ctx, target)
	if err != nil {
		return ledger.Profile{}, false, err
	}
	profile, found, err := s.ledger.Inspect(ctx, username)
	if err != nil {
		return profile, found, err
	}
	s.archive(ctx, "inspect", actor, map[string]string{
		"user":  username,
		"found": strconv.FormatBool(found),
	})
	return profile, found, nil
}

// OnboardOutcome describes a new ledger row.
type OnboardOutcome struct {
	Form templates.OnboardingForm
	Row  int
}

// Onboard parses an onboarding form and adds the recruit to Main.
func (s *Service) Onboard(ctx context.Context, actor, text string) (OnboardOutcome, error) {
	form, err := templates.ParseOnboarding(text)
	if err != nil {
		return OnboardOutcome{}, err
	}
	return s.OnboardForm(ctx, actor, form)
}

// OnboardForm adds an already parsed recruit to Main.
func (s *Service) OnboardForm(ctx context.Context, actor string, form templates.OnboardingForm) (OnboardOutcome, error) {
	row, err := s.ledger.Onboard(ctx, ledger.Member{Username: form.Username, Rank: form.Rank})
	if err != nil {
		return OnboardOutcome{Form: form}, err
	}
	s.archive(ctx, "onboard", actor, map[string]string{
		"user":     form.Username,
		"rank":     form.Rank,
		"timezone": form.Timezone,
		"row":      strconv.Itoa(row),
	})
	return OnboardOutcome{Form: form, Row: row}, nil
}

func (s *Service) archive(ctx context.Context, command, actor string, params map[string]string) {
	if s.audit == nil {
		return
	}
	record := audit.NewRecord(command, actor, s.guild, params)
	if err := s.audit.Write(ctx, record); err != nil {
		log.Warn().Err(err).Str("command", command).Msg("Audit record incomplete")
	}
}
