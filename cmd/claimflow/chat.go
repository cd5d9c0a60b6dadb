package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/claimflow/internal/api"
	"github.com/ShayCichocki/claimflow/internal/orchestrator"
	"github.com/ShayCichocki/claimflow/internal/session"
	"github.com/ShayCichocki/claimflow/internal/tui"
	"github.com/ShayCichocki/claimflow/pkg/models"
)

var chatPlain bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "File a claim through a conversation",
	Long: `Start a claim conversation. The assistant asks for the details it
needs, then processes the claim and shows the decision report.

Use --plain for a line-based prompt, for example when piping input.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().BoolVar(&chatPlain, "plain", false, "Use a line-based prompt instead of the full-screen chat")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := openApp(cfg, appOptions{events: !chatPlain, archive: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if chatPlain {
		err = chatLoop(ctx, a.sessions, os.Stdin, cmd.OutOrStdout())
	} else {
		err = tui.Run(ctx, a.sessions, a.emitter.Events())
	}
	printUsage(cmd.OutOrStdout(), a.usage)
	return err
}

// printUsage writes the language model token totals, if any were spent.
func printUsage(out io.Writer, t *api.TokenTracker) {
	if t == nil || t.Calls() == 0 {
		return
	}
	in, tokOut := t.Total()
	color.New(color.Faint).Fprintf(out, "%s model calls, %s input and %s output tokens\n",
		humanize.Comma(int64(t.Calls())), humanize.Comma(in), humanize.Comma(tokOut))
}

// chatLoop runs one claim conversation over line-based input. It returns
// when the claim is finalized, the input ends or ctx is done.
func chatLoop(ctx context.Context, sessions *session.Manager, in io.Reader, out io.Writer) error {
	assistant := color.New(color.FgCyan)
	prompt := color.New(color.FgBlue, color.Bold)
	failed := color.New(color.FgRed)

	resp, err := sessions.Chat(ctx, "", "")
	if err != nil {
		return err
	}
	id := resp.SessionID
	assistant.Fprintln(out, resp.Message)

	scanner := bufio.NewScanner(in)
	for {
		prompt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "/quit" || text == "/exit" {
			return nil
		}

		resp, err := sessions.Chat(ctx, id, text)
		if err != nil {
			if errors.Is(err, orchestrator.ErrOracleUnavailable) {
				failed.Fprintf(out, "The assistant is unavailable right now, please try again. (%v)\n", err)
				continue
			}
			return err
		}
		if resp.Phase == models.PhaseFinalized {
			fmt.Fprintln(out)
			fmt.Fprintln(out, resp.Message)
			if resp.Report != nil {
				printVerdict(out, resp.Report.ClaimID, resp.Report.Verdict)
			}
			return nil
		}
		assistant.Fprintln(out, resp.Message)
	}
}

// printVerdict prints a one-line colored outcome.
func printVerdict(out io.Writer, claimID string, v models.Verdict) {
	c := color.New(color.FgYellow, color.Bold)
	switch v {
	case models.VerdictApproved:
		c = color.New(color.FgGreen, color.Bold)
	case models.VerdictDenied:
		c = color.New(color.FgRed, color.Bold)
	}
	fmt.Fprintf(out, "%s %s\n", c.Sprint(v), claimID)
}
