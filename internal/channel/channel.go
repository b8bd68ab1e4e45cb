// Package channel defines the submission channel the onboarding pipeline
// drives against the bank: one Session per customer record.
package channel

import (
	"bank_onboarder/internal/domain"
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrSessionClosed      = errors.New("session closed")
	ErrUnexpectedResponse = errors.New("unexpected response from bank")
)

type RegisterResult string
type LoginResult string
type LoanDecision string

const (
	Registered    RegisterResult = "registered"
	AlreadyExists RegisterResult = "already_exists"

	LoggedIn    LoginResult = "logged_in"
	LoginDenied LoginResult = "login_denied"

	LoanApproved LoanDecision = "approved"
	LoanDenied   LoanDecision = "denied"
)

// Gateway opens independent sessions against the bank.
type Gateway interface {
	Open(ctx context.Context) (Session, error)
}

// Session is a scoped resource: every successfully opened Session must be
// closed exactly once. Any returned error is a failure the caller did not
// anticipate from the bank.
type Session interface {
	Register(ctx context.Context, rec domain.CustomerRecord) (RegisterResult, error)
	Login(ctx context.Context, username, password string) (LoginResult, error)
	OpenAccount(ctx context.Context) error
	RequestLoan(ctx context.Context, principal, downPayment decimal.Decimal) (LoanDecision, error)
	Logout(ctx context.Context) error
	Close() error
}
