package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"fanliga/internal/aggregate"
	"fanliga/internal/core"
	"fanliga/internal/gateway"
	"fanliga/internal/seed"
	"fanliga/internal/views"
)

// Env is what the commands run against.
type Env struct {
	Gateway gateway.Gateway
	Rules   []byte
	Close   func() error
}

// Opener builds the Env once a command is about to run.
type Opener func(ctx context.Context) (*Env, error)

// ErrUnavailable is returned when the backend could not serve a view.
var ErrUnavailable = errors.New("backend unavailable, try again later")

type app struct {
	open Opener
	env  *Env
	now  func() time.Time
}

// NewRootCommand returns the fanliga-cli command tree.
func NewRootCommand(open Opener) *cobra.Command {
	a := &app{open: open, now: time.Now}

	root := &cobra.Command{
		Use:           "fanliga-cli",
		Short:         "Consult the fan league ledger, standings and rules",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			env, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			a.env = env
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.env != nil && a.env.Close != nil {
				return a.env.Close()
			}
			return nil
		},
	}

	root.AddCommand(
		a.ledgerCommand(),
		a.totalsCommand(),
		a.standingsCommand(),
		a.compareCommand(),
		a.historyCommand(),
		a.rulesCommand(),
		a.penaltyCommand(),
	)
	return root
}

func (a *app) views() *views.Service {
	return views.NewService(a.env.Gateway, views.Options{})
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func (a *app) ledgerCommand() *cobra.Command {
	var sortKey, direction, participant, format string
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "List penalty and bonus entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			participants, err := a.env.Gateway.ListParticipants(ctx)
			if err != nil {
				return fmt.Errorf("list participants: %w", err)
			}
			entries, err := a.env.Gateway.ListPenalties(ctx)
			if err != nil {
				return fmt.Errorf("list penalties: %w", err)
			}
			rows := aggregate.Ledger(aggregate.JoinLedger(participants, entries), aggregate.LedgerQuery{
				SortKey:   aggregate.ParseSortKey(sortKey, aggregate.SortByDate),
				Direction: aggregate.ParseDirection(direction, aggregate.Desc),
				Filter:    participant,
			})

			out := cmd.OutOrStdout()
			switch format {
			case "csv":
				selected := make([]core.PenaltyEntry, 0, len(rows))
				for _, r := range rows {
					selected = append(selected, r.Entry)
				}
				return seed.WritePenalties(out, selected)
			case "table":
				table := newTable(out, "ID", "Fecha", "Participante", "Equipo", "Importe", "Motivo")
				for _, r := range rows {
					table.Append([]string{
						r.Entry.ID,
						r.Entry.Date,
						r.Name,
						r.Team,
						aggregate.FormatSigned(r.Entry.Amount),
						r.Entry.Reason,
					})
				}
				table.Render()
				return nil
			default:
				return fmt.Errorf("unknown format %q (table or csv)", format)
			}
		},
	}
	cmd.Flags().StringVar(&sortKey, "sort", "date", "sort key: date, participant, team or amount")
	cmd.Flags().StringVar(&direction, "dir", "desc", "sort direction: asc or desc")
	cmd.Flags().StringVarP(&participant, "participant", "p", aggregate.FilterAll, "participant id to filter by")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table or csv")
	return cmd
}

func (a *app) totalsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "totals",
		Short: "Show each participant's running total",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			participants, err := a.env.Gateway.ListParticipants(ctx)
			if err != nil {
				return fmt.Errorf("list participants: %w", err)
			}
			entries, err := a.env.Gateway.ListPenalties(ctx)
			if err != nil {
				return fmt.Errorf("list penalties: %w", err)
			}
			table := newTable(cmd.OutOrStdout(), "Participante", "Equipo", "Total")
			for _, t := range aggregate.RankedTotals(participants, entries) {
				table.Append([]string{
					t.Participant.Name,
					t.Participant.DisplayTeam(aggregate.UnknownTeam),
					aggregate.FormatSigned(t.Total),
				})
			}
			table.Render()
			return nil
		},
	}
}

func (a *app) standingsCommand() *cobra.Command {
	var matchday int
	cmd := &cobra.Command{
		Use:   "standings",
		Short: "Show the adjusted standings of a matchday",
		RunE: func(cmd *cobra.Command, _ []string) error {
			view, err := a.views().Standings(cmd.Context(), matchday)
			if err != nil {
				return err
			}
			if view.Unavailable {
				return ErrUnavailable
			}
			out := cmd.OutOrStdout()
			if view.Matchday == 0 {
				fmt.Fprintln(out, "No hay jornadas todavía.")
				return nil
			}
			fmt.Fprintf(out, "Jornada %d\n", view.Matchday)
			table := newTable(out, "Pos", "Participante", "Equipo", "Puntos")
			for _, r := range view.Rows {
				table.Append([]string{
					strconv.Itoa(r.AdjustedRank),
					r.Name,
					r.DisplayTeam(aggregate.UnknownTeam),
					core.FormatAmount(r.AdjustedPoints),
				})
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().IntVarP(&matchday, "matchday", "m", 0, "matchday to show (default latest)")
	return cmd
}

func (a *app) compareCommand() *cobra.Command {
	var matchday int
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare external and adjusted positions for a matchday",
		RunE: func(cmd *cobra.Command, _ []string) error {
			view, err := a.views().Comparison(cmd.Context(), matchday)
			if err != nil {
				return err
			}
			if view.Unavailable {
				return ErrUnavailable
			}
			out := cmd.OutOrStdout()
			if view.Matchday == 0 {
				fmt.Fprintln(out, "No hay jornadas todavía.")
				return nil
			}
			fmt.Fprintf(out, "Jornada %d\n", view.Matchday)
			table := newTable(out, "Participante", "Pos. externa", "Pos. ajustada", "Dif. pos", "Puntos ext.", "Puntos ajust.", "Dif. puntos")
			for _, r := range view.Rows {
				table.Append([]string{
					r.Name,
					strconv.Itoa(r.ExternalRank),
					strconv.Itoa(r.AdjustedRank),
					r.RankDelta.Display,
					core.FormatAmount(r.ExternalPoints),
					core.FormatAmount(r.AdjustedPoints),
					r.PointsDelta.Display,
				})
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().IntVarP(&matchday, "matchday", "m", 0, "matchday to compare (default latest)")
	return cmd
}

func (a *app) historyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "history <participant-id>",
		Short: "Show a participant's adjusted rank per matchday",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			samples, err := a.env.Gateway.RankHistory(cmd.Context(), args[0])
			if err != nil {
				if errors.Is(err, gateway.ErrNotFound) {
					return fmt.Errorf("participant %s not found", args[0])
				}
				return fmt.Errorf("rank history: %w", err)
			}
			table := newTable(cmd.OutOrStdout(), "Jornada", "Posición")
			for _, s := range samples {
				table.Append([]string{strconv.Itoa(s.Matchday), strconv.Itoa(s.Rank)})
			}
			table.Render()
			return nil
		},
	}
}

func (a *app) rulesCommand() *cobra.Command {
	var toc bool
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Print the league rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if !toc {
				_, err := out.Write(a.env.Rules)
				return err
			}
			for _, h := range aggregate.Headings(a.env.Rules) {
				fmt.Fprintf(out, "%s%s (#%s)\n", strings.Repeat("  ", h.Level-1), h.Text, h.ID)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&toc, "toc", false, "print only the table of contents")
	return cmd
}

func (a *app) penaltyCommand() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "penalty",
		Short: "Record or remove ledger entries (administrators only)",
	}
	cmd.PersistentFlags().StringVar(&email, "email", "", "administrator email")
	cmd.PersistentFlags().StringVar(&password, "password", "", "administrator password")

	signIn := func(ctx context.Context) (context.Context, core.Profile, error) {
		profile, token, err := a.env.Gateway.SignIn(ctx, email, password)
		if err != nil {
			return nil, core.Profile{}, fmt.Errorf("sign in: %w", err)
		}
		if !profile.Admin {
			return nil, core.Profile{}, fmt.Errorf("sign in: %s is not an administrator", profile.Email)
		}
		return gateway.WithAccessToken(ctx, token.AccessToken), profile, nil
	}

	var participant, amount, reason, date string
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a penalty (negative amount) or bonus (positive amount)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(participant) == "" {
				return core.ErrNoParticipant
			}
			value, err := core.ParseAmount(amount)
			if err != nil {
				return err
			}
			if strings.TrimSpace(date) == "" {
				date = a.now().Format(core.DateLayout)
			}
			in := core.PenaltyInput{
				ParticipantID: strings.TrimSpace(participant),
				Amount:        value,
				Reason:        strings.TrimSpace(reason),
				Date:          strings.TrimSpace(date),
			}
			// Invalid input never reaches the backend.
			if err := in.Validate(); err != nil {
				return err
			}
			ctx, profile, err := signIn(cmd.Context())
			if err != nil {
				return err
			}
			in.CreatedBy = profile.Email
			entry, err := a.env.Gateway.InsertPenalty(ctx, in)
			if err != nil {
				return fmt.Errorf("insert penalty: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registrado %s: %s para %s (%s)\n",
				entry.ID, aggregate.FormatSigned(entry.Amount), entry.ParticipantID, entry.Date)
			return nil
		},
	}
	add.Flags().StringVarP(&participant, "participant", "p", "", "participant id")
	add.Flags().StringVarP(&amount, "amount", "a", "", "signed amount, e.g. -5 or 2,5")
	add.Flags().StringVarP(&reason, "reason", "r", "", "reason shown in the ledger")
	add.Flags().StringVarP(&date, "date", "d", "", "entry date YYYY-MM-DD (default today)")

	del := &cobra.Command{
		Use:   "delete <penalty-id>",
		Short: "Delete a ledger entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, _, err := signIn(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.env.Gateway.DeletePenalty(ctx, args[0]); err != nil {
				return fmt.Errorf("delete penalty %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Eliminado %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(add, del)
	return cmd
}

