package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jmehdipour/credit-engine/internal/db"
	"github.com/jmehdipour/credit-engine/internal/ingest"
	"github.com/jmehdipour/credit-engine/internal/repository"
	"github.com/spf13/cobra"
)

var (
	customersFile string
	loansFile     string
)

var ingestCmd = &cobra.Command{
	Use:       "ingest [customers|loans|all]",
	Short:     "Import customers and loan history from XLSX workbooks",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"customers", "loans", "all"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		sqlDB, err := db.NewMySQLConnection(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		im := ingest.NewImporter(
			repository.NewTxRunner(sqlDB),
			repository.NewCustomersRepository(sqlDB),
			repository.NewLoansRepository(sqlDB),
			cfg.Policy,
			cfg.Recorder.BatchSize,
		)

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		what := args[0]
		var reports []ingest.Report
		// customers first: loans of unknown customers are skipped
		if what == "customers" || what == "all" {
			rep, err := importFile(customersFile, func(f *os.File) (ingest.Report, error) {
				return im.ImportCustomers(ctx, f)
			})
			if err != nil {
				return fmt.Errorf("ingest customers: %w", err)
			}
			reports = append(reports, rep)
		}
		if what == "loans" || what == "all" {
			rep, err := importFile(loansFile, func(f *os.File) (ingest.Report, error) {
				return im.ImportLoans(ctx, f)
			})
			if err != nil {
				return fmt.Errorf("ingest loans: %w", err)
			}
			reports = append(reports, rep)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	},
}

func init() {
	ingestCmd.Flags().StringVar(&customersFile, "customers-file", "customer_data.xlsx", "customers workbook")
	ingestCmd.Flags().StringVar(&loansFile, "loans-file", "loan_data.xlsx", "loans workbook")
}

func importFile(path string, fn func(*os.File) (ingest.Report, error)) (ingest.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return ingest.Report{}, err
	}
	defer f.Close()
	return fn(f)
}
