// Package templates parses the structured messages members post: event logs and
// onboarding forms. Each template is a list of "Label: value" lines; a value may
// continue on following lines until the next label.
package templates

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MaxPoints is the most points a single event or extra-points entry may award.
const MaxPoints = 5

const (
	PointTypeEP  = "EP"
	PointTypeCEP = "CEP"
)

var (
	ErrMissingFields = errors.New("missing required fields")
	ErrInvalidPoints = errors.New("invalid point value")
)

const (
	labelEvent       = "Event:"
	labelHost        = "Hosted by:"
	labelCoHost      = "Co-host:"
	labelSupervisor  = "Supervisor:"
	labelAttendees   = "Attendees:"
	labelNotes       = "Notes:"
	labelProof       = "Proof:"
	labelCEP         = "CEP for event:"
	labelEP          = "EP for event:"
	labelExtraPoints = "Extra points:"
	labelPing        = "Ping:"

	labelUsername = "Username:"
	labelRank     = "Rank:"
	labelTimezone = "Timezone:"
)

// CEP is listed before EP so the longer label wins.
var eventLabels = []string{
	labelEvent, labelHost, labelCoHost, labelSupervisor, labelAttendees, labelNotes,
	labelProof, labelCEP, labelEP, labelExtraPoints, labelPing,
}

var onboardingLabels = []string{labelUsername, labelRank, labelTimezone}

var (
	mentionPattern = regexp.MustCompile(`<@!?\d+>`)
	leadingNumber  = regexp.MustCompile(`^\s*(\d+)`)
)

// ExtraPoints is a bonus awarded to one member on top of the event value.
type ExtraPoints struct {
	Token  string
	Amount int
}

// EventRecord is a parsed event log. Member fields hold identity tokens: either a
// mention such as <@123> or a display name, resolved later.
type EventRecord struct {
	EventType      string
	IsCompanyEvent bool
	PointType      string
	PointValue     int
	Host           string
	CoHost         string
	Supervisor     string
	Attendees      []string
	ExtraPoints    []ExtraPoints
	Notes          string
	Proof          string
	Ping           string
}

// Participants returns every member token that earns points, host first.
func (r EventRecord) Participants() []string {
	var out []string
	for _, t := range []string{r.Host, r.CoHost, r.Supervisor} {
		if t != "" {
			out = append(out, t)
		}
	}
	return append(out, r.Attendees...)
}

// ParseEventLog parses an event log message.
func ParseEventLog(text string) (EventRecord, error) {
	fields := parseFields(text, eventLabels)

	var missing []string
	for _, label := range []string{labelEvent, labelHost, labelAttendees, labelNotes, labelProof} {
		if _, ok := fields[label]; !ok {
			missing = append(missing, label)
		}
	}
	_, hasEP := fields[labelEP]
	_, hasCEP := fields[labelCEP]
	if !hasEP && !hasCEP {
		missing = append(missing, labelEP)
	}
	if _, ok := fields[labelPing]; !ok {
		missing = append(missing, labelPing)
	}
	if len(missing) > 0 {
		return EventRecord{}, fmt.Errorf("%w: %s", ErrMissingFields, strings.Join(missing, ", "))
	}

	record := EventRecord{
		EventType: fields[labelEvent],
		PointType: PointTypeEP,
		Notes:     fields[labelNotes],
		Proof:     fields[labelProof],
		Ping:      fields[labelPing],
	}

	pointsLabel := labelEP
	if hasCEP {
		pointsLabel = labelCEP
		record.PointType = PointTypeCEP
		record.IsCompanyEvent = true
	}
	value, err := parsePoints(fields[pointsLabel])
	if err != nil {
		return EventRecord{}, fmt.Errorf("%s %w", pointsLabel, err)
	}
	record.PointValue = value

	record.Host = firstToken(fields[labelHost])
	if record.Host == "" {
		return EventRecord{}, fmt.Errorf("%w: %s is empty", ErrMissingFields, labelHost)
	}
	record.CoHost = firstToken(fields[labelCoHost])
	record.Supervisor = firstToken(fields[labelSupervisor])
	record.Attendees = dedupe(Tokens(fields[labelAttendees]))

	extras, err := parseExtraPoints(fields[labelExtraPoints])
	if err != nil {
		return EventRecord{}, err
	}
	record.ExtraPoints = extras
	return record, nil
}

// OnboardingForm is a parsed onboarding request.
type OnboardingForm struct {
	Username string
	Rank     string
	Timezone string
}

// DefaultRank is given to recruits whose form names no rank.
const DefaultRank = "ST"

// ParseOnboarding parses an onboarding form.
func ParseOnboarding(text string) (OnboardingForm, error) {
	fields := parseFields(text, onboardingLabels)
	form := OnboardingForm{
		Username: fields[labelUsername],
		Rank:     fields[labelRank],
		Timezone: fields[labelTimezone],
	}
	if form.Username == "" {
		return OnboardingForm{}, fmt.Errorf("%w: %s", ErrMissingFields, labelUsername)
	}
	if form.Rank == "" {
		form.Rank = DefaultRank
	}
	return form, nil
}

// Tokens splits a member list into identity tokens. Mentions are kept verbatim;
// everything else is split on commas and newlines.
func Tokens(value string) []string {
	spaced := mentionPattern.ReplaceAllStringFunc(value, func(m string) string {
		return "," + m + ","
	})
	var out []string
	for _, part := range strings.FieldsFunc(spaced, func(r rune) bool { return r == ',' || r == '\n' }) {
		part = strings.TrimSpace(part)
		if isPlaceholder(part) {
			continue
		}
		out = append(out, part)
	}
	return out
}

func isPlaceholder(s string) bool {
	switch strings.ToLower(s) {
	case "", "-", "none", "n/a", "na":
		return true
	}
	return false
}

func firstToken(value string) string {
	tokens := Tokens(value)
	if len(tokens) == 0 {
		return ""
	}
	return tokens[0]
}

func dedupe(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := tokens[:0]
	for _, t := range tokens {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// parsePoints reads the leading integer of a value and checks it is 1..MaxPoints.
func parsePoints(value string) (int, error) {
	m := leadingNumber.FindStringSubmatch(value)
	if m == nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidPoints, value)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPoints, value)
	}
	if n < 1 || n > MaxPoints {
		return 0, fmt.Errorf("%w: %d is outside 1-%d", ErrInvalidPoints, n, MaxPoints)
	}
	return n, nil
}

// parseExtraPoints reads "token amount" entries. Amounts above MaxPoints are capped.
func parseExtraPoints(value string) ([]ExtraPoints, error) {
	var out []ExtraPoints
	for _, entry := range splitEntries(value) {
		fields := strings.Fields(entry)
		if len(fields) < 2 {
			return nil, fmt.Errorf("%w: extra points entry %q needs a member and an amount", ErrInvalidPoints, entry)
		}
		amountText := strings.TrimPrefix(fields[len(fields)-1], "+")
		amount, err := strconv.Atoi(amountText)
		if err != nil || amount < 1 {
			return nil, fmt.Errorf("%w: extra points entry %q", ErrInvalidPoints, entry)
		}
		out = append(out, ExtraPoints{
			Token:  strings.Join(fields[:len(fields)-1], " "),
			Amount: min(amount, MaxPoints),
		})
	}
	return out, nil
}

func splitEntries(value string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == '\n' }) {
		part = strings.TrimSpace(part)
		if isPlaceholder(part) {
			continue
		}
		out = append(out, part)
	}
	return out
}

// parseFields maps each label found at the start of a line to its trimmed value.
// Lines without a label continue the previous field.
func parseFields(text string, labels []string) map[string]string {
	fields := make(map[string]string)
	current := ""
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		if label, rest, ok := matchLabel(trimmed, labels); ok {
			current = label
			fields[label] = strings.TrimSpace(rest)
			continue
		}
		if current == "" || trimmed == "" {
			continue
		}
		if fields[current] == "" {
			fields[current] = trimmed
		} else {
			fields[current] += "\n" + trimmed
		}
	}
	return fields
}

func matchLabel(line string, labels []string) (string, string, bool) {
	for _, label := range labels {
		if len(line) >= len(label) && strings.EqualFold(line[:len(label)], label) {
			return label, line[len(label):], true
		}
	}
	return "", "", false
}
