package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"guild_ledger/internal/app"
	"guild_ledger/internal/ledger"
	"guild_ledger/internal/processing"
	"guild_ledger/internal/templates"
)

// LogEventCmd credits everyone in an event log read from a file or stdin.
func LogEventCmd(load Loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log-event",
		Short: "Credit the participants of an event log",
		Long: `Parse an event log message and credit its host, co-host, supervisor,
attendees and extra points in one batched write per section.

Usage:
  guild-ledger log-event --file patrol.txt
  pbpaste | guild-ledger log-event`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("file")
			text, err := readInput(cmd, path)
			if err != nil {
				return err
			}
			return withApp(cmd, load, func(a *app.App) error {
				outcome, err := a.Service.LogEvent(cmd.Context(), actorFlag(cmd), text)
				if err != nil && len(outcome.Result.Applied) == 0 && len(outcome.Result.Failed) == 0 {
					return err
				}
				eventCard(outcome, err).Render(cmd.OutOrStdout())
				return err
			})
		},
	}
	cmd.Flags().StringP("file", "f", "", "Event log file (stdin when empty or -)")
	return cmd
}

func eventCard(o processing.EventOutcome, err error) Card {
	card := Card{Kind: KindSuccess, Title: "Event logged"}
	switch {
	case err != nil:
		card.Kind = KindWarn
		card.Title = "Event partially logged"
	case len(o.Result.Skipped) > 0 || len(o.Plan.Unresolved) > 0:
		card.Kind = KindWarn
	}

	card.Add("Event", o.Record.EventType)
	card.Add("Points", fmt.Sprintf("%d %s", o.Record.PointValue, o.Record.PointType))
	card.Add("Applied", strconv.Itoa(len(o.Result.Applied)))
	for _, a := range o.Result.Applied {
		for _, w := range a.Writes {
			card.Line("%s %s %s: %d -> %d", a.Update.Section, a.Update.Username, w.Header, w.Old, w.New)
		}
	}
	if len(o.Result.Skipped) > 0 {
		card.Add("Skipped", strconv.Itoa(len(o.Result.Skipped)))
		for _, s := range o.Result.Skipped {
			card.Line("skipped %s %s: %v", s.Update.Username, s.Update.Header, s.Reason)
		}
	}
	if len(o.Result.Failed) > 0 {
		card.Add("Failed", strconv.Itoa(len(o.Result.Failed)))
		for _, f := range o.Result.Failed {
			card.Line("failed %s %s %+d", f.Username, f.Header, f.Delta())
		}
	}
	for _, u := range o.Plan.Unresolved {
		card.Line("unresolved %s (%s): %v", u.Token, u.Role, u.Err)
	}
	if err != nil {
		card.Add("Error", err.Error())
	}
	return card
}

// AddCmd adds points to one member.
func AddCmd(load Loader) *cobra.Command {
	return pointsCmd(load, true)
}

// RemoveCmd removes points from one member, never going below zero.
func RemoveCmd(load Loader) *cobra.Command {
	return pointsCmd(load, false)
}

func pointsCmd(load Loader, isAdd bool) *cobra.Command {
	verb, short := "add", "Add points to a member"
	if !isAdd {
		verb, short = "remove", "Remove points from a member"
	}

	cmd := &cobra.Command{
		Use:   verb + " <user> <amount>",
		Short: short,
		Long: fmt.Sprintf(`%s. The user may be a ledger username or a mention.

Usage:
  guild-ledger %s U2 3            # EP
  guild-ledger %s U2 3 --cep      # CEP
  guild-ledger %s U1 1 --header "Events Hosted"`, short, verb, verb, verb),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("amount must be a whole number: %q", args[1])
			}
			header, _ := cmd.Flags().GetString("header")
			if cep, _ := cmd.Flags().GetBool("cep"); cep && header == "" {
				header = ledger.HeaderCEP
			}
			if header == "" {
				header = ledger.HeaderEP
			}

			return withApp(cmd, load, func(a *app.App) error {
				var outcome processing.PointsOutcome
				if isAdd {
					outcome, err = a.Service.AddPoints(cmd.Context(), actorFlag(cmd), args[0], header, amount)
				} else {
					outcome, err = a.Service.RemovePoints(cmd.Context(), actorFlag(cmd), args[0], header, amount)
				}
				if err != nil {
					return err
				}
				pointsCard(outcome).Render(cmd.OutOrStdout())
				return nil
			})
		},
	}
	cmd.Flags().Bool("cep", false, "Adjust CEP instead of EP")
	cmd.Flags().String("header", "", "Adjust an arbitrary stat column")
	return cmd
}

func pointsCard(o processing.PointsOutcome) Card {
	sign := "+"
	if !o.IsAdd {
		sign = "-"
	}
	if !o.Applied {
		card := Card{Kind: KindWarn, Title: "Member not found"}
		card.Add("User", o.Username)
		card.Line("%s is in neither the Officer nor the Main sheet", o.Username)
		return card
	}
	card := Card{Kind: KindSuccess, Title: "Points updated"}
	card.Add("User", o.Username)
	card.Add(o.Header, sign+strconv.Itoa(o.Amount))
	return card
}

// InspectCmd prints the stats row of a member.
func InspectCmd(load Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <user>",
		Short: "Show a member's stats and quota status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, load, func(a *app.App) error {
				profile, found, err := a.Service.Inspect(cmd.Context(), actorFlag(cmd), args[0])
				if err != nil {
					return err
				}
				if !found {
					card := Card{Kind: KindWarn, Title: "Member not found"}
					card.Add("User", args[0])
					card.Render(cmd.OutOrStdout())
					return nil
				}
				profileCard(profile).Render(cmd.OutOrStdout())
				return nil
			})
		},
	}
}

func profileCard(p ledger.Profile) Card {
	card := Card{Kind: KindInfo, Title: p.Username}
	card.Add("Section", string(p.Section))
	card.Add("Row", strconv.Itoa(p.Row))
	card.Add("Quota", string(p.Status))
	for _, s := range p.Stats {
		card.Add(s.Header, s.Value)
	}
	return card
}

// OnboardCmd adds a recruit to the Main sheet.
func OnboardCmd(load Loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "onboard [username]",
		Short: "Add a recruit to the Main sheet",
		Long: `Add a recruit to the Main sheet, either from an onboarding form or by name.

Usage:
  guild-ledger onboard Newbie --rank ST
  guild-ledger onboard --file form.txt`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("file")
			rank, _ := cmd.Flags().GetString("rank")
			timezone, _ := cmd.Flags().GetString("timezone")

			var text string
			if len(args) == 0 {
				var err error
				if text, err = readInput(cmd, path); err != nil {
					return err
				}
			}

			return withApp(cmd, load, func(a *app.App) error {
				var (
					outcome processing.OnboardOutcome
					err     error
				)
				if len(args) == 1 {
					outcome, err = a.Service.OnboardForm(cmd.Context(), actorFlag(cmd), templates.OnboardingForm{
						Username: strings.TrimSpace(args[0]),
						Rank:     rank,
						Timezone: timezone,
					})
				} else {
					outcome, err = a.Service.Onboard(cmd.Context(), actorFlag(cmd), text)
				}
				if err != nil {
					return err
				}

				card := Card{Kind: KindSuccess, Title: "Member onboarded"}
				card.Add("User", outcome.Form.Username)
				card.Add("Rank", outcome.Form.Rank)
				card.Add("Row", strconv.Itoa(outcome.Row))
				if outcome.Form.Timezone != "" {
					card.Add("Timezone", outcome.Form.Timezone)
				}
				card.Render(cmd.OutOrStdout())
				return nil
			})
		},
	}
	cmd.Flags().StringP("file", "f", "", "Onboarding form file (stdin when empty or -)")
	cmd.Flags().String("rank", templates.DefaultRank, "Rank for a recruit given by name")
	cmd.Flags().String("timezone", "", "Timezone for a recruit given by name")
	return cmd
}

// HistoryCmd lists the most recent entries of the command log.
func HistoryCmd(load Loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent ledger commands from the audit database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return withApp(cmd, load, func(a *app.App) error {
				if a.History == nil {
					return fmt.Errorf("AUDIT_DB is not configured")
				}
				records, err := a.History.Recent(cmd.Context(), limit)
				if err != nil {
					return err
				}
				card := Card{Kind: KindInfo, Title: fmt.Sprintf("%d recent commands", len(records))}
				for _, r := range records {
					card.Line("%s %s by %s", r.At.Format("2006-01-02 15:04"), r.Command, r.Actor)
				}
				card.Render(cmd.OutOrStdout())
				return nil
			})
		},
	}
	cmd.Flags().IntP("limit", "n", 20, "Number of commands to show")
	return cmd
}

func readInput(cmd *cobra.Command, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return string(data), nil
}
