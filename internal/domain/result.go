package domain

import (
	"github.com/shopspring/decimal"
)

type RegistrationStatus string
type LoginStatus string
type AccountStatus string
type LoanStatus string

// The zero value of every stage status means the stage was not attempted.
const (
	RegistrationNotAttempted RegistrationStatus = ""
	RegistrationSuccess      RegistrationStatus = "Success"
	RegistrationExists       RegistrationStatus = "Exists"

	LoginNotAttempted LoginStatus = ""
	LoginSuccess      LoginStatus = "Success"
	LoginFailed       LoginStatus = "Failed"

	AccountNotAttempted AccountStatus = ""
	AccountOpened       AccountStatus = "Success"

	LoanNotAttempted LoanStatus = ""
	LoanSuccess      LoanStatus = "Success"
	LoanFailed       LoanStatus = "Failed"
)

type Outcome string

const (
	OutcomeSucceeded     Outcome = "succeeded"
	OutcomeMissingFields Outcome = "missing_fields"
	OutcomeLoginFailed   Outcome = "login_failed"
	OutcomeLoanDenied    Outcome = "loan_denied"
	OutcomeUnexpected    Outcome = "unexpected_error"
)

// ProcessResult is the reconciliation row of one CustomerRecord.
type ProcessResult struct {
	Record CustomerRecord

	Registration  RegistrationStatus
	Login         LoginStatus
	AccountOpened AccountStatus
	LoanRequested LoanStatus

	DepositUsed      decimal.NullDecimal
	DepositCorrected bool
	DownPayment      decimal.NullDecimal
	LoanUSD          decimal.NullDecimal
	LoanEUR          decimal.NullDecimal

	Outcome Outcome
	Error   string
}

func NewProcessResult(rec CustomerRecord) *ProcessResult {
	return &ProcessResult{Record: rec}
}

func (r *ProcessResult) Succeeded() bool {
	return r.Outcome == OutcomeSucceeded
}

// HasFinancials reports whether any computed money field was recorded.
func (r *ProcessResult) HasFinancials() bool {
	return r.DepositUsed.Valid || r.DownPayment.Valid || r.LoanUSD.Valid || r.LoanEUR.Valid
}
