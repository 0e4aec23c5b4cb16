package processing

import (
	"context"

	"github.com/rs/zerolog/log"

	"guild_ledger/internal/ledger"
	"guild_ledger/internal/templates"
)

// Resolver turns an identity token into a ledger username.
type Resolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}

// SectionFinder reports which section holds each username, along with the rows it
// read to find out.
type SectionFinder interface {
	LocateSections(ctx context.Context, usernames []string) (map[string]ledger.Section, ledger.Snapshots, error)
}

type Role string

const (
	RoleHost       Role = "host"
	RoleCoHost     Role = "co-host"
	RoleSupervisor Role = "supervisor"
	RoleAttendee   Role = "attendee"
	RoleExtra      Role = "extra"
)

// Unresolved is a token that could not be turned into a username.
type Unresolved struct {
	Token string
	Role  Role
	Err   error
}

// Participant is a resolved member and the section their points go to.
type Participant struct {
	Username string
	Role     Role
	Section  ledger.Section
	Found    bool
}

// Plan is the set of updates an event log produces.
type Plan struct {
	Participants []Participant
	Updates      []ledger.PendingUpdate
	Unresolved   []Unresolved
	// Snapshots are the section rows read while planning.
	Snapshots ledger.Snapshots
}

type Planner struct {
	resolver  Resolver
	sections  SectionFinder
	maxPoints int
}

func NewPlanner(resolver Resolver, sections SectionFinder, maxPoints int) *Planner {
	if maxPoints <= 0 {
		maxPoints = templates.MaxPoints
	}
	return &Planner{resolver: resolver, sections: sections, maxPoints: maxPoints}
}

type token struct {
	value  string
	role   Role
	amount int
}

// Plan resolves every member of an event and builds their updates. Officers are
// credited OP, and hosts or co-hosts among them also get a hosted-event count.
// Everyone else is credited the event's point type. A member listed twice is
// credited once, under their first role. Members found in neither section are
// credited in Main.
func (p *Planner) Plan(ctx context.Context, rec templates.EventRecord) (Plan, error) {
	var plan Plan

	var members []token
	for _, t := range []token{
		{value: rec.Host, role: RoleHost},
		{value: rec.CoHost, role: RoleCoHost},
		{value: rec.Supervisor, role: RoleSupervisor},
	} {
		if t.value != "" {
			members = append(members, t)
		}
	}
	for _, a := range rec.Attendees {
		members = append(members, token{value: a, role: RoleAttendee})
	}
	var extras []token
	for _, e := range rec.ExtraPoints {
		extras = append(extras, token{value: e.Token, role: RoleExtra, amount: min(e.Amount, p.maxPoints)})
	}

	resolved := p.resolve(ctx, members, &plan)
	resolvedExtras := p.resolve(ctx, extras, &plan)

	names := make([]string, 0, len(resolved)+len(resolvedExtras))
	for _, r := range append(append([]resolvedToken(nil), resolved...), resolvedExtras...) {
		names = append(names, r.username)
	}
	sections, snapshots, err := p.sections.LocateSections(ctx, names)
	if err != nil {
		return Plan{}, err
	}
	plan.Snapshots = snapshots
	sectionOf := func(username string) (ledger.Section, bool) {
		if s, ok := sections[username]; ok {
			return s, true
		}
		log.Warn().Str("username", username).Msg("User not found in Officer or Main, defaulting to Main")
		return ledger.SectionMain, false
	}

	hostedHeader := ledger.HeaderEventsHosted
	if rec.IsCompanyEvent {
		hostedHeader = ledger.HeaderCompanyEventsHosted
	}

	credited := make(map[string]bool)
	for _, r := range resolved {
		if credited[r.username] {
			log.Debug().Str("username", r.username).Str("role", string(r.role)).Msg("Member listed twice, crediting once")
			continue
		}
		credited[r.username] = true

		section, found := sectionOf(r.username)
		plan.Participants = append(plan.Participants, Participant{Username: r.username, Role: r.role, Section: section, Found: found})

		if section == ledger.SectionOfficer {
			plan.Updates = append(plan.Updates, credit(section, r.username, ledger.HeaderOP, rec.PointValue))
			if r.role == RoleHost || r.role == RoleCoHost {
				plan.Updates = append(plan.Updates, credit(section, r.username, hostedHeader, 1))
			}
			continue
		}
		plan.Updates = append(plan.Updates, credit(section, r.username, rec.PointType, rec.PointValue))
	}

	for _, r := range resolvedExtras {
		section, _ := sectionOf(r.username)
		header := rec.PointType
		if section == ledger.SectionOfficer {
			header = ledger.HeaderOP
		}
		plan.Updates = append(plan.Updates, credit(section, r.username, header, r.amount))
	}

	log.Debug().
		Int("participants", len(plan.Participants)).
		Int("updates", len(plan.Updates)).
		Int("unresolved", len(plan.Unresolved)).
		Msg("Planned event updates")
	return plan, nil
}

type resolvedToken struct {
	username string
	role     Role
	amount   int
}

func (p *Planner) resolve(ctx context.Context, tokens []token, plan *Plan) []resolvedToken {
	var out []resolvedToken
	for _, t := range tokens {
		username, err := p.resolver.Resolve(ctx, t.value)
		if err == nil && username == "" {
			continue
		}
		if err != nil {
			log.Warn().Err(err).Str("token", t.value).Str("role", string(t.role)).Msg("Could not resolve member")
			plan.Unresolved = append(plan.Unresolved, Unresolved{Token: t.value, Role: t.role, Err: err})
			continue
		}
		out = append(out, resolvedToken{username: username, role: t.role, amount: t.amount})
	}
	return out
}

func credit(section ledger.Section, username, header string, amount int) ledger.PendingUpdate {
	return ledger.PendingUpdate{
		Section:  section,
		Username: username,
		Header:   header,
		Amount:   amount,
		IsAdd:    true,
	}
}
