package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jmehdipour/credit-engine/internal/eligibility"
	"github.com/jmehdipour/credit-engine/internal/model"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// historyLoan is one entry of the --history file.
type historyLoan struct {
	LoanAmount     decimal.Decimal `json:"loan_amount"`
	EMIsPaidOnTime int             `json:"emis_paid_on_time"`
	StartDate      string          `json:"start_date"` // YYYY-MM-DD
}

var decideFlags struct {
	salary  string
	limit   string
	amount  string
	rate    float64
	tenure  int
	history string
}

var decideCmd = &cobra.Command{
	Use:   "decide",
	Short: "Run the eligibility engine offline and print the decision as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		engine, err := eligibility.New(cfg.Policy)
		if err != nil {
			return fmt.Errorf("policy: %w", err)
		}

		salary, err := decimal.NewFromString(decideFlags.salary)
		if err != nil {
			return fmt.Errorf("--salary: %w", err)
		}
		amount, err := decimal.NewFromString(decideFlags.amount)
		if err != nil {
			return fmt.Errorf("--amount: %w", err)
		}
		limit := eligibility.ApprovedLimit(cfg.Policy, salary)
		if decideFlags.limit != "" {
			if limit, err = decimal.NewFromString(decideFlags.limit); err != nil {
				return fmt.Errorf("--limit: %w", err)
			}
		}

		loans, err := readHistory(decideFlags.history)
		if err != nil {
			return err
		}

		d, err := engine.Decide(
			model.Customer{MonthlySalary: salary, ApprovedLimit: limit},
			loans,
			model.LoanApplication{LoanAmount: amount, InterestRate: decideFlags.rate, Tenure: decideFlags.tenure},
		)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	},
}

func init() {
	f := decideCmd.Flags()
	f.StringVar(&decideFlags.salary, "salary", "0", "monthly salary")
	f.StringVar(&decideFlags.limit, "limit", "", "approved limit (default: derived from salary)")
	f.StringVar(&decideFlags.amount, "amount", "0", "requested principal")
	f.Float64Var(&decideFlags.rate, "rate", 0, "annual interest rate, percent")
	f.IntVar(&decideFlags.tenure, "tenure", 12, "tenure in months")
	f.StringVar(&decideFlags.history, "history", "", "JSON file with the customer's existing loans")
}

func readHistory(path string) ([]model.Loan, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	var items []historyLoan
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, fmt.Errorf("parse history: %w", err)
	}

	loans := make([]model.Loan, 0, len(items))
	for i, it := range items {
		start, err := time.Parse(time.DateOnly, it.StartDate)
		if err != nil {
			return nil, fmt.Errorf("history[%d].start_date: %w", i, err)
		}
		loans = append(loans, model.Loan{
			LoanAmount:     it.LoanAmount,
			EMIsPaidOnTime: it.EMIsPaidOnTime,
			StartDate:      start,
		})
	}
	return loans, nil
}
