package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/claimflow/internal/state"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the sample customers, policies and claim history",
	Long: `Create the demo dataset in the claims database: three customers, their
motor, home and health policies, and a few earlier claims for the history
check. Running it again does nothing.`,
	RunE: runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
	db, err := state.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	sum, err := state.Seed(cmd.Context(), db)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if sum.Skipped {
		printStatus(out, "⚠", "Sample data already present in "+cfg.Store.Path, color.FgYellow)
		return nil
	}
	printStatus(out, "✓", fmt.Sprintf("%d customers", sum.Customers), color.FgGreen)
	printStatus(out, "✓", fmt.Sprintf("%d policies", sum.Policies), color.FgGreen)
	printStatus(out, "✓", fmt.Sprintf("%d claims", sum.Claims), color.FgGreen)
	printStatus(out, "✓", fmt.Sprintf("%d history records", sum.History), color.FgGreen)
	fmt.Fprintf(out, "\n%s Seeded %s\n", color.GreenString("✓"), cfg.Store.Path)
	return nil
}
