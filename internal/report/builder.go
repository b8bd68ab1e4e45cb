// Package report turns processed customer results into the reconciliation
// table and writes it out as a spreadsheet.
package report

import (
	"bank_onboarder/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	ColRegistration     = "Registration"
	ColLogin            = "Login"
	ColAccountOpened    = "Account Opened"
	ColLoanRequested    = "Loan Requested"
	ColDepositCorrected = "Initial Deposit (Corrected)"
	ColDepositDefaulted = "Deposit Defaulted"
	ColDownPaymentUSD   = "Down Payment USD"
	ColLoanUSD          = "Loan USD"
	ColLoanEUR          = "Loan EUR"
	ColError            = "Error"

	redacted = "****"
)

var (
	statusColumns    = []string{ColRegistration, ColLogin, ColAccountOpened, ColLoanRequested}
	financialColumns = []string{ColDepositCorrected, ColDepositDefaulted, ColDownPaymentUSD, ColLoanUSD, ColLoanEUR}
	secretColumns    = map[string]bool{domain.ColPassword: true, domain.ColCVV: true}
)

// Cell is one report value. Number is set for money cells.
type Cell struct {
	Text   string
	Number decimal.NullDecimal
}

type Table struct {
	Header []string
	Rows   [][]Cell
}

type Summary struct {
	Total         int
	Succeeded     int
	MissingFields int
	LoginFailed   int
	LoanFailed    int
	Unexpected    int
}

type Builder struct {
	redact  bool
	results []domain.ProcessResult
}

func NewBuilder(redact bool) *Builder {
	return &Builder{redact: redact}
}

func (b *Builder) Add(res domain.ProcessResult) {
	b.results = append(b.results, res)
}

// Columns returns the report header. An input column appears only when at
// least one record carried it.
func (b *Builder) Columns() []string {
	var cols []string
	for _, col := range domain.RecordColumns() {
		if b.carried(col) {
			cols = append(cols, col)
		}
	}
	cols = append(cols, statusColumns...)
	cols = append(cols, financialColumns...)
	return append(cols, ColError)
}

func (b *Builder) carried(col string) bool {
	for i := range b.results {
		rec := &b.results[i].Record
		if rec.HasColumn(col) || rec.Get(col) != "" {
			return true
		}
	}
	return false
}

func (b *Builder) Table() Table {
	header := b.Columns()
	rows := make([][]Cell, 0, len(b.results))
	for i := range b.results {
		rows = append(rows, b.row(header, &b.results[i]))
	}
	return Table{Header: header, Rows: rows}
}

func (b *Builder) row(header []string, res *domain.ProcessResult) []Cell {
	row := make([]Cell, len(header))
	for i, col := range header {
		row[i] = b.cell(col, res)
	}
	return row
}

func (b *Builder) cell(col string, res *domain.ProcessResult) Cell {
	switch col {
	case ColRegistration:
		return Cell{Text: string(res.Registration)}
	case ColLogin:
		return Cell{Text: string(res.Login)}
	case ColAccountOpened:
		return Cell{Text: string(res.AccountOpened)}
	case ColLoanRequested:
		return Cell{Text: string(res.LoanRequested)}
	case ColDepositCorrected:
		return money(res.DepositUsed)
	case ColDepositDefaulted:
		if !res.DepositUsed.Valid {
			return Cell{}
		}
		if res.DepositCorrected {
			return Cell{Text: "Yes"}
		}
		return Cell{Text: "No"}
	case ColDownPaymentUSD:
		return money(res.DownPayment)
	case ColLoanUSD:
		return money(res.LoanUSD)
	case ColLoanEUR:
		return money(res.LoanEUR)
	case ColError:
		return Cell{Text: res.Error}
	}

	value := res.Record.Get(col)
	if b.redact && secretColumns[col] && value != "" {
		return Cell{Text: redacted}
	}
	return Cell{Text: value}
}

func money(v decimal.NullDecimal) Cell {
	if !v.Valid {
		return Cell{}
	}
	return Cell{Text: v.Decimal.StringFixed(2), Number: v}
}

func (b *Builder) Summary() Summary {
	s := Summary{Total: len(b.results)}
	for i := range b.results {
		switch b.results[i].Outcome {
		case domain.OutcomeSucceeded:
			s.Succeeded++
		case domain.OutcomeMissingFields:
			s.MissingFields++
		case domain.OutcomeLoginFailed:
			s.LoginFailed++
		case domain.OutcomeLoanDenied:
			s.LoanFailed++
		default:
			s.Unexpected++
		}
	}
	return s
}
