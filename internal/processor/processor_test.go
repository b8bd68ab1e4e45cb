package processor

import (
	"bank_onboarder/internal/channel"
	"bank_onboarder/internal/domain"
	"bank_onboarder/pkg/loan"
	"bank_onboarder/pkg/validator"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type fakeGateway struct {
	mu sync.Mutex

	existing map[string]bool
	loginOK  bool
	approve  bool
	openErr  error
	failAt   map[string]error
	panicAt  string
	block    chan struct{}

	opens   int
	closes  int
	loans   []decimal.Decimal
	visited []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		existing: map[string]bool{},
		loginOK:  true,
		approve:  true,
		failAt:   map[string]error{},
	}
}

func (g *fakeGateway) Open(ctx context.Context) (channel.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.panicAt == StageOpen {
		panic("driver install failed")
	}
	if g.openErr != nil {
		return nil, g.openErr
	}
	g.opens++
	return &fakeSession{gw: g}, nil
}

func (g *fakeGateway) counts() (int, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.opens, g.closes
}

type fakeSession struct {
	gw *fakeGateway
}

func (s *fakeSession) step(stage string) error {
	s.gw.mu.Lock()
	err := s.gw.failAt[stage]
	panicAt := s.gw.panicAt
	s.gw.mu.Unlock()
	if panicAt == stage {
		panic("boom at " + stage)
	}
	return err
}

func (s *fakeSession) Register(ctx context.Context, rec domain.CustomerRecord) (channel.RegisterResult, error) {
	if s.gw.block != nil {
		select {
		case <-s.gw.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err := s.step(StageRegister); err != nil {
		return "", err
	}
	s.gw.mu.Lock()
	defer s.gw.mu.Unlock()
	s.gw.visited = append(s.gw.visited, rec.Username)
	if s.gw.existing[rec.Username] {
		return channel.AlreadyExists, nil
	}
	return channel.Registered, nil
}

func (s *fakeSession) Login(ctx context.Context, username, password string) (channel.LoginResult, error) {
	if err := s.step(StageLogin); err != nil {
		return "", err
	}
	if !s.gw.loginOK {
		return channel.LoginDenied, nil
	}
	return channel.LoggedIn, nil
}

func (s *fakeSession) OpenAccount(ctx context.Context) error {
	return s.step(StageOpenAccount)
}

func (s *fakeSession) RequestLoan(ctx context.Context, principal, downPayment decimal.Decimal) (channel.LoanDecision, error) {
	if err := s.step(StageRequestLoan); err != nil {
		return "", err
	}
	s.gw.mu.Lock()
	s.gw.loans = append(s.gw.loans, downPayment)
	s.gw.mu.Unlock()
	if !s.gw.approve {
		return channel.LoanDenied, nil
	}
	return channel.LoanApproved, nil
}

func (s *fakeSession) Logout(ctx context.Context) error {
	return s.step(StageLogout)
}

func (s *fakeSession) Close() error {
	s.gw.mu.Lock()
	defer s.gw.mu.Unlock()
	s.gw.closes++
	if s.gw.panicAt == StageClose {
		panic("close exploded")
	}
	return nil
}

type countingRecorder struct {
	mu      sync.Mutex
	results []domain.Outcome
}

func (r *countingRecorder) RecordResult(res *domain.ProcessResult, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res.Outcome)
}

func customer(username string) domain.CustomerRecord {
	return domain.CustomerRecord{
		FirstName:      "Alice",
		LastName:       "Smith",
		Address:        "123 St",
		City:           "Town",
		State:          "TS",
		ZipCode:        "12345",
		PhoneNumber:    "555-1234",
		SSN:            "123-45-6789",
		Username:       username,
		Password:       "secret",
		InitialDeposit: "2000",
	}
}

func newOrchestrator(gw channel.Gateway, rec Recorder) *Orchestrator {
	return NewOrchestrator(
		gw,
		validator.NewRecordValidator(decimal.NewFromInt(100)),
		loan.NewCalculator(decimal.Zero, decimal.Zero),
		domain.ExchangeRate{Value: decimal.RequireFromString("0.86"), Source: domain.RateLive},
		rec,
		nil,
	)
}

func TestOrchestrator_NewCustomerSucceeds(t *testing.T) {
	gw := newFakeGateway()
	recorder := &countingRecorder{}

	res := newOrchestrator(gw, recorder).Process(context.Background(), customer("alice"))

	if res.Outcome != domain.OutcomeSucceeded || res.Error != "" {
		t.Fatalf("expected success, got outcome=%s error=%q", res.Outcome, res.Error)
	}
	if res.Registration != domain.RegistrationSuccess || res.Login != domain.LoginSuccess ||
		res.AccountOpened != domain.AccountOpened || res.LoanRequested != domain.LoanSuccess {
		t.Errorf("unexpected stage statuses: %+v", res)
	}
	if res.DownPayment.Decimal.StringFixed(2) != "400.00" {
		t.Errorf("expected down payment 400.00, got %s", res.DownPayment.Decimal)
	}
	if res.LoanUSD.Decimal.String() != "10000" {
		t.Errorf("expected loan usd 10000, got %s", res.LoanUSD.Decimal)
	}
	if res.LoanEUR.Decimal.StringFixed(2) != "8600.00" {
		t.Errorf("expected loan eur 8600.00, got %s", res.LoanEUR.Decimal)
	}
	if opens, closes := gw.counts(); opens != 1 || closes != 1 {
		t.Errorf("expected one open and one close, got %d/%d", opens, closes)
	}
	if len(recorder.results) != 1 {
		t.Errorf("expected one recorded result, got %d", len(recorder.results))
	}
}

func TestOrchestrator_ExistingCustomerLogsIn(t *testing.T) {
	gw := newFakeGateway()
	gw.existing["bob"] = true

	res := newOrchestrator(gw, nil).Process(context.Background(), customer("bob"))

	if res.Registration != domain.RegistrationExists || res.Login != domain.LoginSuccess {
		t.Errorf("expected Exists/Success, got %s/%s", res.Registration, res.Login)
	}
	if !res.Succeeded() {
		t.Errorf("expected success, got %s", res.Error)
	}
}

func TestOrchestrator_LoginFailureStopsBeforeAccount(t *testing.T) {
	gw := newFakeGateway()
	gw.existing["bob"] = true
	gw.loginOK = false

	res := newOrchestrator(gw, nil).Process(context.Background(), customer("bob"))

	if res.Login != domain.LoginFailed || res.Error != "Login failed" {
		t.Fatalf("expected login failure, got %s %q", res.Login, res.Error)
	}
	if res.AccountOpened != domain.AccountNotAttempted || res.LoanRequested != domain.LoanNotAttempted {
		t.Errorf("expected later stages untouched, got %s/%s", res.AccountOpened, res.LoanRequested)
	}
	if res.HasFinancials() {
		t.Errorf("expected no financial fields after login failure")
	}
	if _, closes := gw.counts(); closes != 1 {
		t.Errorf("expected session closed once, got %d", closes)
	}
}

func TestOrchestrator_MissingFieldsNeverOpensSession(t *testing.T) {
	gw := newFakeGateway()
	rec := customer("alice")
	rec.FirstName = ""
	rec.City = "nan"

	res := newOrchestrator(gw, nil).Process(context.Background(), rec)

	if res.Outcome != domain.OutcomeMissingFields {
		t.Fatalf("expected missing fields, got %s", res.Outcome)
	}
	if res.Error != "Missing fields: First Name, City" {
		t.Errorf("unexpected error text %q", res.Error)
	}
	if res.Registration != domain.RegistrationNotAttempted {
		t.Errorf("expected registration not attempted, got %s", res.Registration)
	}
	if opens, _ := gw.counts(); opens != 0 {
		t.Errorf("expected no session, got %d opens", opens)
	}
}

func TestOrchestrator_LoanDenied(t *testing.T) {
	gw := newFakeGateway()
	gw.approve = false

	res := newOrchestrator(gw, nil).Process(context.Background(), customer("carol"))

	if res.LoanRequested != domain.LoanFailed || res.Outcome != domain.OutcomeLoanDenied {
		t.Fatalf("expected loan denied, got %s/%s", res.LoanRequested, res.Outcome)
	}
	if res.Error != "Loan request failed" {
		t.Errorf("unexpected error text %q", res.Error)
	}
	if res.LoanEUR.Valid {
		t.Errorf("expected no converted amount for a denied loan")
	}
	if !res.DownPayment.Valid || !res.LoanUSD.Valid {
		t.Errorf("expected submitted financials to be recorded")
	}
}

func TestOrchestrator_DepositCorrectedBeforeQuote(t *testing.T) {
	gw := newFakeGateway()
	rec := customer("dave")
	rec.InitialDeposit = "-5"

	res := newOrchestrator(gw, nil).Process(context.Background(), rec)

	if !res.DepositCorrected || res.DepositUsed.Decimal.StringFixed(2) != "100.00" {
		t.Errorf("expected corrected deposit 100.00, got %s corrected=%v", res.DepositUsed.Decimal, res.DepositCorrected)
	}
	if len(gw.loans) != 1 || gw.loans[0].StringFixed(2) != "20.00" {
		t.Errorf("expected down payment 20.00 sent to the bank, got %v", gw.loans)
	}
}

func TestOrchestrator_UnexpectedErrors(t *testing.T) {
	cases := []struct {
		stage       string
		accountOpen domain.AccountStatus
	}{
		{StageRegister, domain.AccountNotAttempted},
		{StageOpenAccount, domain.AccountNotAttempted},
		{StageRequestLoan, domain.AccountOpened},
	}

	for _, c := range cases {
		gw := newFakeGateway()
		gw.failAt[c.stage] = errors.New("connection reset")

		res := newOrchestrator(gw, nil).Process(context.Background(), customer("erin"))

		if res.Outcome != domain.OutcomeUnexpected {
			t.Errorf("%s: expected unexpected outcome, got %s", c.stage, res.Outcome)
		}
		if res.Error != "Unexpected error: connection reset" {
			t.Errorf("%s: unexpected error text %q", c.stage, res.Error)
		}
		if res.LoanRequested != domain.LoanFailed {
			t.Errorf("%s: expected loan marked failed, got %s", c.stage, res.LoanRequested)
		}
		if res.AccountOpened != c.accountOpen {
			t.Errorf("%s: expected account status %q, got %q", c.stage, c.accountOpen, res.AccountOpened)
		}
		if _, closes := gw.counts(); closes != 1 {
			t.Errorf("%s: expected session closed once, got %d", c.stage, closes)
		}
	}
}

func TestOrchestrator_LogoutFailureKeepsLoanSuccess(t *testing.T) {
	gw := newFakeGateway()
	gw.failAt[StageLogout] = errors.New("timeout")

	res := newOrchestrator(gw, nil).Process(context.Background(), customer("frank"))

	if res.LoanRequested != domain.LoanSuccess {
		t.Errorf("expected loan to stay successful, got %s", res.LoanRequested)
	}
	if res.Outcome != domain.OutcomeUnexpected || !strings.Contains(res.Error, "timeout") {
		t.Errorf("expected unexpected logout error, got %s %q", res.Outcome, res.Error)
	}
}

func TestOrchestrator_PanicIsRecoveredAndSessionClosed(t *testing.T) {
	gw := newFakeGateway()
	gw.panicAt = StageOpenAccount

	res := newOrchestrator(gw, nil).Process(context.Background(), customer("gina"))

	if res.Outcome != domain.OutcomeUnexpected || !strings.Contains(res.Error, "boom at open_account") {
		t.Errorf("expected recovered panic, got %s %q", res.Outcome, res.Error)
	}
	if _, closes := gw.counts(); closes != 1 {
		t.Errorf("expected session closed once, got %d", closes)
	}
}

func TestOrchestrator_PanicInOpenIsRecovered(t *testing.T) {
	gw := newFakeGateway()
	gw.panicAt = StageOpen

	res := newOrchestrator(gw, nil).Process(context.Background(), customer("olga"))

	if res.Outcome != domain.OutcomeUnexpected || res.Error != "Unexpected error: driver install failed" {
		t.Errorf("expected recovered open panic, got %s %q", res.Outcome, res.Error)
	}
	if res.Registration != domain.RegistrationNotAttempted || res.LoanRequested != domain.LoanFailed {
		t.Errorf("unexpected stage statuses: %s/%s", res.Registration, res.LoanRequested)
	}
}

func TestOrchestrator_PanicInCloseIsRecovered(t *testing.T) {
	gw := newFakeGateway()
	gw.panicAt = StageClose

	res := newOrchestrator(gw, nil).Process(context.Background(), customer("paul"))

	if res.Outcome != domain.OutcomeUnexpected || !strings.Contains(res.Error, "close exploded") {
		t.Errorf("expected recovered close panic, got %s %q", res.Outcome, res.Error)
	}
	if res.LoanRequested != domain.LoanSuccess {
		t.Errorf("expected approved loan to stay successful, got %s", res.LoanRequested)
	}
	if _, closes := gw.counts(); closes != 1 {
		t.Errorf("expected session closed once, got %d", closes)
	}
}

func TestBatch_PanickingGatewayDoesNotStopRun(t *testing.T) {
	gw := newFakeGateway()
	gw.panicAt = StageOpen

	records := []domain.CustomerRecord{customer("q1"), customer("q2"), customer("q3")}
	results := NewBatch(newOrchestrator(gw, nil), 2).Run(context.Background(), records)

	if len(results) != len(records) {
		t.Fatalf("expected %d results, got %d", len(records), len(results))
	}
	for i, res := range results {
		if res.Outcome != domain.OutcomeUnexpected {
			t.Errorf("record %d: expected unexpected outcome, got %s", i, res.Outcome)
		}
	}
}

func TestOrchestrator_OpenFailure(t *testing.T) {
	gw := newFakeGateway()
	gw.openErr = errors.New("bank unreachable")

	res := newOrchestrator(gw, nil).Process(context.Background(), customer("hank"))

	if res.Error != "Unexpected error: bank unreachable" {
		t.Errorf("unexpected error text %q", res.Error)
	}
	if res.Registration != domain.RegistrationNotAttempted {
		t.Errorf("expected registration not attempted, got %s", res.Registration)
	}
}

func TestOrchestrator_RecordTimeout(t *testing.T) {
	gw := newFakeGateway()
	gw.block = make(chan struct{})
	defer close(gw.block)

	orch := newOrchestrator(gw, nil).WithRecordTimeout(20 * time.Millisecond)
	res := orch.Process(context.Background(), customer("ivy"))

	if res.Outcome != domain.OutcomeUnexpected || !strings.Contains(res.Error, "deadline exceeded") {
		t.Errorf("expected deadline error, got %s %q", res.Outcome, res.Error)
	}
	if _, closes := gw.counts(); closes != 1 {
		t.Errorf("expected session closed once, got %d", closes)
	}
}

func TestBatch_PreservesInputOrder(t *testing.T) {
	gw := newFakeGateway()
	gw.existing["u2"] = true
	gw.loginOK = false

	records := []domain.CustomerRecord{customer("u0"), customer("u1"), customer("u2"), customer("u3"), customer("u4")}
	results := NewBatch(newOrchestrator(gw, nil), 3).Run(context.Background(), records)

	if len(results) != len(records) {
		t.Fatalf("expected %d results, got %d", len(records), len(results))
	}
	for i, res := range results {
		if res.Record.Username != records[i].Username {
			t.Errorf("result %d belongs to %s", i, res.Record.Username)
		}
	}
	if results[2].Outcome != domain.OutcomeLoginFailed {
		t.Errorf("expected u2 login failure, got %s", results[2].Outcome)
	}
	if opens, closes := gw.counts(); opens != 5 || closes != 5 {
		t.Errorf("expected 5 opens and closes, got %d/%d", opens, closes)
	}
}

func TestBatch_CancelledContextReportsEveryRecord(t *testing.T) {
	gw := newFakeGateway()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records := []domain.CustomerRecord{customer("a"), customer("b"), customer("c")}
	results := NewBatch(newOrchestrator(gw, nil), 2).Run(ctx, records)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, res := range results {
		if res.Outcome != domain.OutcomeUnexpected {
			t.Errorf("record %d: expected unexpected outcome, got %s", i, res.Outcome)
		}
		if !strings.Contains(res.Error, "context canceled") {
			t.Errorf("record %d: expected cancellation error, got %q", i, res.Error)
		}
	}
	if opens, closes := gw.counts(); opens != closes {
		t.Errorf("every opened session must be closed, got %d/%d", opens, closes)
	}
}

func TestBatch_Empty(t *testing.T) {
	results := NewBatch(newOrchestrator(newFakeGateway(), nil), 4).Run(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}
