// Package audit archives every command that touched the ledger.
package audit

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"guild_ledger/internal/metrics"
)

// Record is one archived command invocation.
type Record struct {
	ID      uuid.UUID
	Command string
	Actor   string
	Guild   string
	Params  map[string]string
	At      time.Time
}

// NewRecord stamps a record with a fresh id and the current time.
func NewRecord(command, actor, guild string, params map[string]string) Record {
	if params == nil {
		params = map[string]string{}
	}
	return Record{
		ID:      uuid.New(),
		Command: command,
		Actor:   actor,
		Guild:   guild,
		Params:  params,
		At:      time.Now().UTC(),
	}
}

// Keys returns the parameter names in sorted order.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r.Params))
	for k := range r.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Text renders the record as plain lines, parameters sorted by name.
func (r Record) Text() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Command: %s\n", r.Command)
	fmt.Fprintf(&sb, "User: %s\n", r.Actor)
	if r.Guild != "" {
		fmt.Fprintf(&sb, "Guild: %s\n", r.Guild)
	}
	for _, k := range r.Keys() {
		fmt.Fprintf(&sb, "%s: %s\n", k, r.Params[k])
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// Sink stores or forwards audit records.
type Sink interface {
	Name() string
	Write(ctx context.Context, r Record) error
}

// LogSink writes records to the structured log.
type LogSink struct{}

func (LogSink) Name() string { return "log" }

func (LogSink) Write(ctx context.Context, r Record) error {
	event := log.Info().
		Str("audit_id", r.ID.String()).
		Str("command", r.Command).
		Str("actor", r.Actor).
		Str("guild", r.Guild)
	for _, k := range r.Keys() {
		event = event.Str(k, r.Params[k])
	}
	event.Msg("Command executed")
	return nil
}

// Multi fans a record out to several sinks. A failing sink is logged and does not
// stop the others.
type Multi struct {
	sinks   []Sink
	metrics *metrics.Metrics
}

func NewMulti(m *metrics.Metrics, sinks ...Sink) *Multi {
	return &Multi{sinks: sinks, metrics: m}
}

func (m *Multi) Name() string { return "multi" }

func (m *Multi) Write(ctx context.Context, r Record) error {
	var errs []error
	for _, s := range m.sinks {
		err := s.Write(ctx, r)
		m.metrics.AuditRecord(s.Name(), err == nil)
		if err != nil {
			log.Warn().
				Err(err).
				Str("sink", s.Name()).
				Str("audit_id", r.ID.String()).
				Msg("Failed to write audit record")
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
