// Command statement_generator produces synthetic bank statement CSV files
// for exercising the import pipeline: optional bank preambles for account
// matching, duplicated rows for dedup, and monthly charge series for
// recurring detection.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// StatementGenerator generates bank statement CSV files
type StatementGenerator struct {
	Count          int
	StartDate      time.Time
	EndDate        time.Time
	MinAmount      decimal.Decimal
	MaxAmount      decimal.Decimal
	DuplicateRatio float64
	Format         string
	Seed           int64

	rng *rand.Rand
}

// StatementRow represents one generated statement line
type StatementRow struct {
	Date        time.Time
	Description string
	Merchant    string
	Amount      decimal.Decimal
}

var merchants = []struct {
	Name        string
	Description string
	Category    string
}{
	{"Starbucks", "STARBUCKS STORE #%04d", "coffee"},
	{"Whole Foods", "WHOLEFDS MKT %04d", "groceries"},
	{"Shell", "SHELL OIL %08d", "gas"},
	{"Amazon", "AMZN MKTP US*%s", "shopping"},
	{"Uber", "UBER TRIP %s", "transport"},
	{"CVS Pharmacy", "CVS/PHARMACY #%05d", "health"},
	{"Chipotle", "CHIPOTLE %04d", "dining"},
	{"Target", "TARGET T-%04d", "shopping"},
}

var recurringSeries = []struct {
	Description string
	Amount      float64
}{
	{"NETFLIX.COM", -15.49},
	{"SPOTIFY USA", -11.99},
	{"PLANET FITNESS", -24.99},
}

func main() {
	var (
		output    = flag.String("output", "generated_statement.csv", "Output CSV file path")
		count     = flag.Int("count", 200, "Number of statement rows to generate")
		startDate = flag.String("start-date", "2026-01-01", "Start date (YYYY-MM-DD)")
		endDate   = flag.String("end-date", "2026-06-30", "End date (YYYY-MM-DD)")
		minAmount = flag.Float64("min-amount", 1.00, "Minimum charge amount")
		maxAmount = flag.Float64("max-amount", 500.00, "Maximum charge amount")
		dupRatio  = flag.Float64("duplicate-ratio", 0.05, "Ratio of rows duplicated verbatim (0.0-1.0)")
		format    = flag.String("format", "simple", "Output format: simple, debitcredit")
		preamble  = flag.Bool("preamble", true, "Include a bank header block before the CSV data")
		bank      = flag.String("bank", "Chase Bank", "Institution name for the preamble")
		lastFour  = flag.String("last-four", "5678", "Masked account digits for the preamble")
		recurring = flag.Bool("recurring", true, "Include monthly recurring charge series")
		income    = flag.Bool("income", true, "Include biweekly payroll deposits")
		seed      = flag.Int64("seed", time.Now().UnixNano(), "Random seed for reproducible generation")
	)
	flag.Parse()

	start, err := time.Parse("2006-01-02", *startDate)
	if err != nil {
		log.Fatalf("Invalid start date: %v", err)
	}

	end, err := time.Parse("2006-01-02", *endDate)
	if err != nil {
		log.Fatalf("Invalid end date: %v", err)
	}

	if !end.After(start) {
		log.Fatal("end date must be after start date")
	}

	generator := &StatementGenerator{
		Count:          *count,
		StartDate:      start,
		EndDate:        end,
		MinAmount:      decimal.NewFromFloat(*minAmount),
		MaxAmount:      decimal.NewFromFloat(*maxAmount),
		DuplicateRatio: *dupRatio,
		Format:         *format,
		Seed:           *seed,
		rng:            rand.New(rand.NewSource(*seed)),
	}

	rows := generator.GenerateRandom()
	if *recurring {
		rows = append(rows, generator.GenerateRecurring()...)
	}
	if *income {
		rows = append(rows, generator.GeneratePayroll()...)
	}
	rows = generator.InjectDuplicates(rows)

	var header string
	if *preamble {
		header = fmt.Sprintf("%s\nChecking Account Number: ****%s\nStatement Period: %s to %s\n\n",
			*bank, *lastFour,
			start.Format("01/02/2006"), end.Format("01/02/2006"))
	}

	if err := generator.WriteToCSV(*output, header, rows); err != nil {
		log.Fatalf("Failed to write CSV: %v", err)
	}

	fmt.Printf("Generated %d statement rows in %s\n", len(rows), *output)
	fmt.Printf("Format: %s\n", *format)
	fmt.Printf("Date range: %s to %s\n", start.Format("2006-01-02"), end.Format("2006-01-02"))
	fmt.Printf("Duplicate ratio: %.1f%%\n", *dupRatio*100)
	fmt.Printf("Seed used: %d\n", *seed)
}

// GenerateRandom creates random everyday charges
func (sg *StatementGenerator) GenerateRandom() []StatementRow {
	rows := make([]StatementRow, sg.Count)

	duration := sg.EndDate.Sub(sg.StartDate)

	for i := 0; i < sg.Count; i++ {
		rowDate := sg.StartDate.Add(time.Duration(sg.rng.Int63n(int64(duration))))

		amountRange := sg.MaxAmount.Sub(sg.MinAmount)
		amount := decimal.NewFromFloat(sg.rng.Float64()).Mul(amountRange).Add(sg.MinAmount).Round(2)

		m := merchants[sg.rng.Intn(len(merchants))]
		rows[i] = StatementRow{
			Date:        rowDate,
			Description: sg.fillDescription(m.Description),
			Merchant:    m.Name,
			Amount:      amount.Neg(),
		}
	}

	return rows
}

// GenerateRecurring creates monthly charge series that span the date range
func (sg *StatementGenerator) GenerateRecurring() []StatementRow {
	var rows []StatementRow

	for _, series := range recurringSeries {
		day := 1 + sg.rng.Intn(28)
		charge := time.Date(sg.StartDate.Year(), sg.StartDate.Month(), day, 0, 0, 0, 0, time.UTC)
		if charge.Before(sg.StartDate) {
			charge = charge.AddDate(0, 1, 0)
		}

		for !charge.After(sg.EndDate) {
			rows = append(rows, StatementRow{
				Date:        charge,
				Description: series.Description,
				Amount:      decimal.NewFromFloat(series.Amount),
			})
			charge = charge.AddDate(0, 1, 0)
		}
	}

	return rows
}

// GeneratePayroll creates biweekly salary deposits
func (sg *StatementGenerator) GeneratePayroll() []StatementRow {
	var rows []StatementRow

	amount := decimal.NewFromFloat(2000 + sg.rng.Float64()*1500).Round(2)
	payday := sg.StartDate.AddDate(0, 0, sg.rng.Intn(14))

	for !payday.After(sg.EndDate) {
		rows = append(rows, StatementRow{
			Date:        payday,
			Description: "ACME CORP PAYROLL DIRECT DEP",
			Amount:      amount,
		})
		payday = payday.AddDate(0, 0, 14)
	}

	return rows
}

// InjectDuplicates duplicates a sample of rows verbatim
func (sg *StatementGenerator) InjectDuplicates(rows []StatementRow) []StatementRow {
	dupCount := int(float64(len(rows)) * sg.DuplicateRatio)

	for i := 0; i < dupCount; i++ {
		rows = append(rows, rows[sg.rng.Intn(len(rows))])
	}

	return rows
}

// WriteToCSV writes the statement file, preceded by an optional preamble
func (sg *StatementGenerator) WriteToCSV(filename, preamble string, rows []StatementRow) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if preamble != "" {
		if _, err := file.WriteString(preamble); err != nil {
			return err
		}
	}

	writer := csv.NewWriter(file)
	defer writer.Flush()

	switch sg.Format {
	case "debitcredit":
		if err := writer.Write([]string{"Date", "Description", "Debit", "Credit"}); err != nil {
			return err
		}
		for _, row := range rows {
			debit, credit := "", ""
			if row.Amount.IsNegative() {
				debit = row.Amount.Abs().StringFixed(2)
			} else {
				credit = row.Amount.StringFixed(2)
			}
			record := []string{row.Date.Format("01/02/2006"), row.Description, debit, credit}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	default:
		if err := writer.Write([]string{"Date", "Description", "Merchant", "Amount"}); err != nil {
			return err
		}
		for _, row := range rows {
			record := []string{row.Date.Format("2006-01-02"), row.Description, row.Merchant, row.Amount.StringFixed(2)}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	}

	return nil
}

func (sg *StatementGenerator) fillDescription(template string) string {
	switch {
	case strings.Contains(template, "%04d"):
		return fmt.Sprintf(template, sg.rng.Intn(10000))
	case strings.Contains(template, "%05d"):
		return fmt.Sprintf(template, sg.rng.Intn(100000))
	case strings.Contains(template, "%08d"):
		return fmt.Sprintf(template, sg.rng.Intn(100000000))
	case strings.Contains(template, "%s"):
		return fmt.Sprintf(template, sg.randomToken(7))
	default:
		return template
	}
}

func (sg *StatementGenerator) randomToken(n int) string {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[sg.rng.Intn(len(alphabet))]
	}
	return string(b)
}
