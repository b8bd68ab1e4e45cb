package processor

import (
	"bank_onboarder/internal/channel"
	"bank_onboarder/internal/domain"
	"bank_onboarder/pkg/loan"
	"bank_onboarder/pkg/validator"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StageOpen        = "open_session"
	StageRegister    = "register"
	StageLogin       = "login"
	StageOpenAccount = "open_account"
	StageRequestLoan = "request_loan"
	StageLogout      = "logout"
	StageClose       = "close_session"
)

// Recorder receives every finalized result.
type Recorder interface {
	RecordResult(res *domain.ProcessResult, duration time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) RecordResult(*domain.ProcessResult, time.Duration) {}

// Orchestrator drives one customer record through
// Validate, Register-or-Login, OpenAccount, RequestLoan, Logout and Done.
type Orchestrator struct {
	gateway       channel.Gateway
	validator     *validator.RecordValidator
	calculator    *loan.Calculator
	rate          domain.ExchangeRate
	recorder      Recorder
	recordTimeout time.Duration
	logger        *slog.Logger
}

func NewOrchestrator(
	gateway channel.Gateway,
	v *validator.RecordValidator,
	calculator *loan.Calculator,
	rate domain.ExchangeRate,
	recorder Recorder,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}

	return &Orchestrator{
		gateway:    gateway,
		validator:  v,
		calculator: calculator,
		rate:       rate,
		recorder:   recorder,
		logger:     logger,
	}
}

// WithRecordTimeout bounds the bank interaction of each record. Zero disables it.
func (o *Orchestrator) WithRecordTimeout(d time.Duration) *Orchestrator {
	o.recordTimeout = d
	return o
}

// Process always returns exactly one finalized result for rec.
func (o *Orchestrator) Process(ctx context.Context, rec domain.CustomerRecord) domain.ProcessResult {
	startTime := time.Now()
	res := domain.NewProcessResult(rec)
	logger := o.logger.With(
		slog.String("customer", rec.Label()),
		slog.Int("row", rec.Row))

	outcome := o.validator.Validate(rec)
	if !outcome.Valid {
		o.finalize(ctx, logger, res, &MissingFieldsError{Fields: outcome.Missing}, startTime)
		return *res
	}

	err := o.submit(ctx, logger, res, outcome)
	o.finalize(ctx, logger, res, err, startTime)
	return *res
}

func (o *Orchestrator) submit(ctx context.Context, logger *slog.Logger, res *domain.ProcessResult, outcome validator.Outcome) (err error) {
	if o.recordTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.recordTimeout)
		defer cancel()
	}

	if err := ctx.Err(); err != nil {
		return unexpected(StageOpen, err)
	}

	defer func() {
		if r := recover(); r != nil {
			err = unexpected("panic", fmt.Errorf("%v", r))
		}
	}()

	session, err := o.gateway.Open(ctx)
	if err != nil {
		return unexpected(StageOpen, err)
	}
	defer func() {
		panicked, cerr := closeSession(session)
		switch {
		case cerr == nil:
		case panicked:
			if err == nil {
				err = unexpected(StageClose, cerr)
			}
		default:
			logger.WarnContext(ctx, "Failed to close bank session", slog.String("error", cerr.Error()))
		}
	}()

	rec := res.Record

	registered, err := session.Register(ctx, rec)
	if err != nil {
		return unexpected(StageRegister, err)
	}

	if registered == channel.Registered {
		res.Registration = domain.RegistrationSuccess
		res.Login = domain.LoginSuccess
		logger.InfoContext(ctx, "Customer registered")
	} else {
		res.Registration = domain.RegistrationExists
		logger.InfoContext(ctx, "Username exists, trying login")

		login, err := session.Login(ctx, rec.Username, rec.Password)
		if err != nil {
			return unexpected(StageLogin, err)
		}
		if login != channel.LoggedIn {
			res.Login = domain.LoginFailed
			return ErrLoginFailed
		}
		res.Login = domain.LoginSuccess
		logger.InfoContext(ctx, "Logged in")
	}

	// The bank reports nothing back here; absence of an error is success.
	if err := session.OpenAccount(ctx); err != nil {
		return unexpected(StageOpenAccount, err)
	}
	res.AccountOpened = domain.AccountOpened

	quote := o.calculator.Quote(outcome.Deposit, o.rate.Value)
	res.DepositUsed = nullable(outcome.Deposit)
	res.DepositCorrected = outcome.Corrected
	res.DownPayment = nullable(quote.DownPayment)
	res.LoanUSD = nullable(quote.Principal)

	decision, err := session.RequestLoan(ctx, quote.Principal, quote.DownPayment)
	if err != nil {
		return unexpected(StageRequestLoan, err)
	}

	var loanErr error
	if decision == channel.LoanApproved {
		res.LoanRequested = domain.LoanSuccess
		res.LoanEUR = nullable(quote.Converted)
		logger.InfoContext(ctx, "Loan requested",
			slog.String("loan_usd", quote.Principal.String()),
			slog.String("loan_eur", quote.Converted.StringFixed(2)),
			slog.String("down_payment_usd", quote.DownPayment.StringFixed(2)))
	} else {
		res.LoanRequested = domain.LoanFailed
		loanErr = ErrLoanDenied
	}

	if err := session.Logout(ctx); err != nil {
		return unexpected(StageLogout, err)
	}

	return loanErr
}

func (o *Orchestrator) finalize(ctx context.Context, logger *slog.Logger, res *domain.ProcessResult, err error, startTime time.Time) {
	var (
		missing *MissingFieldsError
		unexp   *UnexpectedError
	)

	switch {
	case err == nil:
		res.Outcome = domain.OutcomeSucceeded
	case errors.As(err, &missing):
		res.Outcome = domain.OutcomeMissingFields
		res.Error = missing.Error()
	case errors.Is(err, ErrLoginFailed):
		res.Outcome = domain.OutcomeLoginFailed
		res.Error = "Login failed"
	case errors.Is(err, ErrLoanDenied):
		res.Outcome = domain.OutcomeLoanDenied
		res.Error = "Loan request failed"
	default:
		if !errors.As(err, &unexp) {
			unexp = &UnexpectedError{Cause: err}
		}
		res.Outcome = domain.OutcomeUnexpected
		res.Error = unexp.Error()
		if res.LoanRequested != domain.LoanSuccess {
			res.LoanRequested = domain.LoanFailed
		}
	}

	duration := time.Since(startTime)
	o.recorder.RecordResult(res, duration)

	if res.Error == "" {
		logger.InfoContext(ctx, "Customer processed",
			slog.String("outcome", string(res.Outcome)),
			slog.Duration("duration", duration))
		return
	}
	logger.WarnContext(ctx, "Customer not fully processed",
		slog.String("outcome", string(res.Outcome)),
		slog.String("error", res.Error),
		slog.Duration("duration", duration))
}

// closeSession releases s and reports a panic raised by Close as an error.
func closeSession(s channel.Session) (panicked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			err = fmt.Errorf("close session: %v", r)
		}
	}()
	return false, s.Close()
}

func nullable(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
