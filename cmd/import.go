package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/promo-scout/internal/importer"
)

var (
	importVenuesCSV string
	importOffersCSV string
	importXLSXPath  string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import the reference dataset",
	Long:  "Loads reference venues and offers from CSV files (--venues, --offers) or an XLSX workbook (--xlsx) with Casinos and Offers sheets. Re-importing replaces a venue's reference offers; AI-discovered records are untouched.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if importXLSXPath == "" && importVenuesCSV == "" {
			return eris.New("either --xlsx or --venues is required")
		}
		if importXLSXPath != "" && importVenuesCSV != "" {
			return eris.New("--xlsx and --venues are mutually exclusive")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		im := importer.New(st)

		var res *importer.Result
		if importXLSXPath != "" {
			res, err = im.ImportXLSX(ctx, importXLSXPath)
		} else {
			res, err = im.ImportCSV(ctx, importVenuesCSV, importOffersCSV)
		}
		if err != nil {
			return err
		}

		fmt.Printf("Imported %d venues, %d offers", res.Venues, res.Offers)
		if res.SkippedOffers > 0 {
			fmt.Printf(" (%d offers skipped: unknown venue)", res.SkippedOffers)
		}
		fmt.Println()
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importVenuesCSV, "venues", "", "venues CSV file")
	importCmd.Flags().StringVar(&importOffersCSV, "offers", "", "offers CSV file")
	importCmd.Flags().StringVar(&importXLSXPath, "xlsx", "", "XLSX workbook with Casinos and Offers sheets")
	rootCmd.AddCommand(importCmd)
}
