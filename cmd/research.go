package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/promo-scout/internal/model"
)

var (
	researchWait     bool
	researchInterval time.Duration
)

var researchCmd = &cobra.Command{
	Use:   "research",
	Short: "Start a research run",
	Long:  "Starts an asynchronous research run over all jurisdictions and prints its identifier. With --wait, polls the store until the run reaches a terminal state.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		engine, st, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := engine.StartRun(ctx)
		if err != nil {
			return eris.Wrap(err, "start run")
		}
		fmt.Printf("Started run %s\n", run.ID)

		if !researchWait {
			return nil
		}

		seenLogs := 0
		for {
			time.Sleep(researchInterval)

			snapshot, err := engine.GetRun(ctx, run.ID)
			if err != nil {
				return eris.Wrap(err, "poll run")
			}

			for _, entry := range snapshot.Log[seenLogs:] {
				fmt.Printf("[%s] %s\n", entry.At.Format(time.TimeOnly), entry.Message)
			}
			seenLogs = len(snapshot.Log)

			if snapshot.Status.Terminal() {
				printRunResult(snapshot)
				if snapshot.Status == model.RunStatusFailed {
					os.Exit(1)
				}
				return nil
			}
		}
	},
}

func printRunResult(run *model.Run) {
	fmt.Printf("\nRun %s: %s\n", run.ID, run.Status)
	if run.Error != "" {
		fmt.Printf("Error: %s\n", run.Error)
	}
	if run.Summary == nil {
		return
	}
	fmt.Printf("Missing casinos: %d\n", run.Summary.TotalMissingCasinos)
	fmt.Printf("New offers:      %d\n", run.Summary.TotalNewOffers)
	for _, mv := range run.MissingVenues {
		fmt.Printf("  %s: %d missing\n", mv.State, len(mv.Casinos))
	}
}

func init() {
	researchCmd.Flags().BoolVar(&researchWait, "wait", false, "poll until the run completes")
	researchCmd.Flags().DurationVar(&researchInterval, "interval", 2*time.Second, "poll interval with --wait")
	rootCmd.AddCommand(researchCmd)
}
