package api

import (
	"guild_ledger/internal/ledger"
	"guild_ledger/internal/processing"
)

// LogEventRequest carries the raw text of an event log.
type LogEventRequest struct {
	Actor string `json:"actor"`
	Text  string `json:"text"`
}

// PointsRequest adjusts one stat of one member. Header defaults to EP.
type PointsRequest struct {
	Actor  string `json:"actor"`
	User   string `json:"user"`
	Header string `json:"header"`
	Amount int    `json:"amount"`
}

// OnboardRequest accepts either a raw onboarding form or its fields.
type OnboardRequest struct {
	Actor    string `json:"actor"`
	Text     string `json:"text,omitempty"`
	Username string `json:"username,omitempty"`
	Rank     string `json:"rank,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

type UpdateDTO struct {
	Section  string `json:"section"`
	Username string `json:"username"`
	Header   string `json:"header"`
	Delta    int    `json:"delta"`
	Reason   string `json:"reason,omitempty"`
}

type UnresolvedDTO struct {
	Token string `json:"token"`
	Role  string `json:"role"`
	Error string `json:"error"`
}

type EventResultDTO struct {
	Event      string          `json:"event"`
	PointType  string          `json:"point_type"`
	Points     int             `json:"points"`
	Applied    []UpdateDTO     `json:"applied"`
	Skipped    []UpdateDTO     `json:"skipped"`
	Failed     []UpdateDTO     `json:"failed"`
	Unresolved []UnresolvedDTO `json:"unresolved"`
	Error      string          `json:"error,omitempty"`
}

type PointsResultDTO struct {
	User    string `json:"user"`
	Header  string `json:"header"`
	Amount  int    `json:"amount"`
	Added   bool   `json:"added"`
	Applied bool   `json:"applied"`
}

type StatDTO struct {
	Header string `json:"header"`
	Value  string `json:"value"`
}

type ProfileDTO struct {
	Username string    `json:"username"`
	Section  string    `json:"section"`
	Row      int       `json:"row"`
	Status   string    `json:"status"`
	Color    string    `json:"color,omitempty"`
	Stats    []StatDTO `json:"stats"`
}

type OnboardResultDTO struct {
	Username string `json:"username"`
	Rank     string `json:"rank"`
	Timezone string `json:"timezone,omitempty"`
	Row      int    `json:"row"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toUpdateDTO(u ledger.PendingUpdate, reason error) UpdateDTO {
	dto := UpdateDTO{
		Section:  string(u.Section),
		Username: u.Username,
		Header:   u.Header,
		Delta:    u.Delta(),
	}
	if reason != nil {
		dto.Reason = reason.Error()
	}
	return dto
}

func toEventResultDTO(o processing.EventOutcome) EventResultDTO {
	dto := EventResultDTO{
		Event:      o.Record.EventType,
		PointType:  o.Record.PointType,
		Points:     o.Record.PointValue,
		Applied:    []UpdateDTO{},
		Skipped:    []UpdateDTO{},
		Failed:     []UpdateDTO{},
		Unresolved: []UnresolvedDTO{},
	}
	for _, a := range o.Result.Applied {
		dto.Applied = append(dto.Applied, toUpdateDTO(a.Update, nil))
	}
	for _, s := range o.Result.Skipped {
		dto.Skipped = append(dto.Skipped, toUpdateDTO(s.Update, s.Reason))
	}
	for _, f := range o.Result.Failed {
		dto.Failed = append(dto.Failed, toUpdateDTO(f, nil))
	}
	for _, u := range o.Plan.Unresolved {
		dto.Unresolved = append(dto.Unresolved, UnresolvedDTO{Token: u.Token, Role: string(u.Role), Error: u.Err.Error()})
	}
	return dto
}

func toProfileDTO(p ledger.Profile) ProfileDTO {
	dto := ProfileDTO{
		Username: p.Username,
		Section:  string(p.Section),
		Row:      p.Row,
		Status:   string(p.Status),
		Color:    p.Color,
		Stats:    []StatDTO{},
	}
	for _, s := range p.Stats {
		dto.Stats = append(dto.Stats, StatDTO{Header: s.Header, Value: s.Value})
	}
	return dto
}
