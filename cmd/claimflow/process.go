package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/claimflow/internal/extract"
	"github.com/ShayCichocki/claimflow/internal/orchestrator"
	"github.com/ShayCichocki/claimflow/internal/rules"
	"github.com/ShayCichocki/claimflow/internal/tools"
	"github.com/ShayCichocki/claimflow/pkg/models"
)

var (
	processJSON       bool
	processSequential bool
)

var processCmd = &cobra.Command{
	Use:   "process <claim.yaml>",
	Short: "Process a claim from a file without a conversation",
	Long: `Process a claim described in a YAML file, skipping intake.

The file is a flat map of intake fields, for example:

  session_id: batch-0001
  claim_type: motor
  identifier: KA-01-AB-1234
  incident_date: 2026-10-18
  description: rear-ended at a signal, bumper damaged
  amount: 45000
  customer_id: CUST-001
  documents: [claim form, driving license, repair estimate]

Missing fields are noted in the report and usually lead to REVIEW.`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().BoolVar(&processJSON, "json", false, "Print the report and audit trail as JSON")
	processCmd.Flags().BoolVar(&processSequential, "sequential", false, "Run the tools of each wave one at a time")
}

func runProcess(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read claim file: %w", err)
	}

	a, err := openApp(cfg, appOptions{sequential: processSequential})
	if err != nil {
		return err
	}
	defer a.Close()

	rec, err := parseClaimFile(data, a.rules, time.Now)
	if err != nil {
		return err
	}

	s, err := a.orch.ProcessClaim(cmd.Context(), rec)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if processJSON {
		return writeProcessJSON(out, s)
	}
	printAudit(out, s.Audit())
	fmt.Fprintln(out)
	if rep := s.Report(); rep != nil {
		fmt.Fprintln(out, rep.Text)
		printVerdict(out, rep.ClaimID, rep.Verdict)
	}
	if note := s.IntakeNote(); note != "" {
		color.New(color.FgYellow).Fprintf(out, "note: %s\n", note)
	}
	return nil
}

// parseClaimFile turns a flat YAML map of intake fields into a claim
// record. Lists are joined with commas.
func parseClaimFile(data []byte, src rules.Source, now func() time.Time) (*models.ClaimRecord, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse claim file: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("parse claim file: no fields")
	}

	sessionID, _ := raw["session_id"].(string)
	delete(raw, "session_id")
	if sessionID == "" {
		sessionID = "file-" + now().UTC().Format("20060102T150405")
	}

	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		fields[k] = scalarString(v)
	}
	// Type first so later fields are read against it.
	ex := extract.New(src).WithClock(now)
	var draft models.ClaimDraft
	if ct, ok := fields[rules.FieldClaimType]; ok {
		ex.Merge(&draft, map[string]string{rules.FieldClaimType: ct})
		delete(fields, rules.FieldClaimType)
	}
	ex.Merge(&draft, fields)
	if draft.Type == "" && draft.Description != "" {
		draft.Type, draft.SubType, _ = extract.Normalize(src.Tables(), draft.Description)
	}
	if !draft.Type.Valid() {
		return nil, fmt.Errorf("parse claim file: claim_type is missing or unknown")
	}
	return ex.Finalize(draft, sessionID), nil
}

func scalarString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []any:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			parts = append(parts, scalarString(item))
		}
		return strings.Join(parts, ", ")
	case time.Time:
		return x.Format("2006-01-02")
	default:
		return fmt.Sprint(x)
	}
}

// printAudit prints one line per tool result.
func printAudit(out io.Writer, results []models.ToolResult) {
	ok := color.New(color.FgGreen)
	bad := color.New(color.FgRed)
	dim := color.New(color.Faint)

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Tool.Rank() < results[j].Tool.Rank()
	})
	for _, r := range results {
		mark := ok.Sprint("✓")
		detail := dim.Sprint(r.Duration.Round(time.Microsecond))
		if !r.Success {
			mark = bad.Sprint("✗")
			detail = fmt.Sprintf("%s %s", r.Kind, dim.Sprint(r.Reason))
		}
		fmt.Fprintf(out, "%s %-20s %s\n", mark, r.Tool, detail)
	}
}

type processOutput struct {
	SessionID  string              `json:"session_id"`
	Report     *tools.Report       `json:"report,omitempty"`
	Decision   *models.Decision    `json:"decision,omitempty"`
	Audit      []models.ToolResult `json:"audit"`
	IntakeNote string              `json:"intake_note,omitempty"`
}

func writeProcessJSON(out io.Writer, s *orchestrator.Session) error {
	po := processOutput{
		SessionID:  s.ID(),
		Report:     s.Report(),
		Decision:   s.Decision(),
		Audit:      s.Audit(),
		IntakeNote: s.IntakeNote(),
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(po)
}
