package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/claimflow/internal/session"
)

var sessionsLimit int

var sessionsCmd = &cobra.Command{
	Use:   "sessions [session-id]",
	Short: "List archived sessions or show one",
	Long: `Without arguments, lists the most recently archived sessions.
With a session ID, prints that session's transcript and report.

Sessions are archived when they finish or when they expire unfinished.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSessions,
}

func init() {
	sessionsCmd.Flags().IntVarP(&sessionsLimit, "limit", "n", 20, "Number of sessions to list")
}

func runSessions(cmd *cobra.Command, args []string) error {
	archive, err := session.OpenArchive(cfg.Archive.Path)
	if err != nil {
		return err
	}
	defer archive.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		rec, err := archive.Get(ctx, args[0])
		if err != nil {
			return err
		}
		if rec == nil {
			return fmt.Errorf("no archived session %s", args[0])
		}
		fmt.Fprintf(out, "Session %s (%s, archived %s)\n\n", rec.SessionID, rec.Phase, humanize.Time(rec.ArchivedAt))
		fmt.Fprintln(out, rec.Transcript)
		if rec.IntakeNote != "" {
			fmt.Fprintf(out, "\nnote: %s\n", rec.IntakeNote)
		}
		if rec.Report != "" {
			fmt.Fprintln(out)
			fmt.Fprintln(out, rec.Report)
		}
		return nil
	}

	records, err := archive.List(ctx, sessionsLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "No archived sessions.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tCLAIM\tPHASE\tVERDICT\tDURATION\tARCHIVED")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.SessionID, orDash(r.ClaimID), r.Phase, orDash(string(r.Verdict)),
			sessionDuration(r), humanize.Time(r.ArchivedAt))
	}
	return w.Flush()
}

func sessionDuration(r session.Record) string {
	if r.StartedAt.IsZero() || r.ArchivedAt.Before(r.StartedAt) {
		return "-"
	}
	return r.ArchivedAt.Sub(r.StartedAt).Round(time.Second).String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
