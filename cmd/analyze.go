package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/promo-scout/internal/research"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <run-id>",
	Short: "Judge a run's new offers against current ones",
	Long:  "Asks the completion service whether each new offer found by a run beats the venue's current offers. Read-only over the run record.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		ai, err := initCompleter()
		if err != nil {
			return err
		}

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "load run")
		}
		if len(run.Comparisons) == 0 {
			fmt.Println("Run has no new offers to analyze.")
			return nil
		}

		results, err := research.AnalyzeRun(ctx, ai, run)
		if err != nil {
			return err
		}

		for _, r := range results {
			fmt.Printf("%s (%s)\n", r.VenueName, r.State)
			for _, v := range r.Verdicts {
				verdict := "not superior"
				if v.Superior {
					verdict = "superior"
				}
				fmt.Printf("  %s: %s. %s\n", v.OfferName, verdict, v.Reasoning)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}
