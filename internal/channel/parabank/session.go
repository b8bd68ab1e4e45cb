package parabank

import (
	"bank_onboarder/internal/channel"
	"bank_onboarder/internal/domain"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	welcomeMarker      = "Welcome"
	checkingAccount    = "0"
	formContentType    = "application/x-www-form-urlencoded"
	invalidLoginMarker = "Invalid username and/or password"
)

var _ channel.Session = (*session)(nil)

type customer struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type account struct {
	ID         int64           `json:"id"`
	CustomerID int64           `json:"customerId"`
	Type       string          `json:"type"`
	Balance    decimal.Decimal `json:"balance"`
}

type loanResponse struct {
	Approved         bool   `json:"approved"`
	Message          string `json:"message"`
	AccountID        *int64 `json:"accountId"`
	LoanProviderName string `json:"loanProviderName"`
}

type session struct {
	gw     *Gateway
	client *http.Client

	username   string
	password   string
	customerID int64
	accountID  int64
	closed     bool
}

func (s *session) Register(ctx context.Context, rec domain.CustomerRecord) (channel.RegisterResult, error) {
	if s.closed {
		return "", channel.ErrSessionClosed
	}

	form := url.Values{}
	form.Set("customer.firstName", strings.TrimSpace(rec.FirstName))
	form.Set("customer.lastName", strings.TrimSpace(rec.LastName))
	form.Set("customer.address.street", strings.TrimSpace(rec.Address))
	form.Set("customer.address.city", strings.TrimSpace(rec.City))
	form.Set("customer.address.state", strings.TrimSpace(rec.State))
	form.Set("customer.address.zipCode", strings.TrimSpace(rec.ZipCode))
	form.Set("customer.phoneNumber", strings.TrimSpace(rec.PhoneNumber))
	form.Set("customer.ssn", strings.TrimSpace(rec.SSN))
	form.Set("customer.username", rec.Username)
	form.Set("customer.password", rec.Password)
	form.Set("repeatedPassword", rec.Password)

	resp, err := s.do(ctx, http.MethodPost, s.gw.resolve(registerPage, nil),
		strings.NewReader(form.Encode()), formContentType)
	if err != nil {
		return "", fmt.Errorf("register %s: %w", rec.Username, err)
	}

	s.username = rec.Username
	s.password = rec.Password

	if !bytes.Contains(resp.body, []byte(welcomeMarker)) {
		return channel.AlreadyExists, nil
	}
	return channel.Registered, nil
}

func (s *session) Login(ctx context.Context, username, password string) (channel.LoginResult, error) {
	if s.closed {
		return "", channel.ErrSessionClosed
	}

	c, found, err := s.lookup(ctx, username, password)
	if err != nil {
		return "", fmt.Errorf("login %s: %w", username, err)
	}
	if !found {
		return channel.LoginDenied, nil
	}

	s.username = username
	s.password = password
	s.customerID = c.ID
	return channel.LoggedIn, nil
}

func (s *session) OpenAccount(ctx context.Context) error {
	if s.closed {
		return channel.ErrSessionClosed
	}
	if err := s.ensureCustomer(ctx); err != nil {
		return err
	}

	fromID, err := s.primaryAccount(ctx)
	if err != nil {
		return err
	}

	query := url.Values{}
	query.Set("customerId", strconv.FormatInt(s.customerID, 10))
	query.Set("newAccountType", checkingAccount)
	query.Set("fromAccountId", strconv.FormatInt(fromID, 10))

	resp, err := s.do(ctx, http.MethodPost, s.gw.service(query, "createAccount"), nil, "")
	if err != nil {
		return fmt.Errorf("open account: %w", err)
	}

	var created account
	if err := json.Unmarshal(resp.body, &created); err != nil {
		// The bank gives no usable signal here; the account counts as opened.
		s.gw.logger.WarnContext(ctx, "Could not decode created account",
			slog.String("error", err.Error()))
		s.accountID = fromID
		return nil
	}
	if created.ID != 0 {
		s.accountID = created.ID
	} else {
		s.accountID = fromID
	}
	return nil
}

func (s *session) RequestLoan(ctx context.Context, principal, downPayment decimal.Decimal) (channel.LoanDecision, error) {
	if s.closed {
		return "", channel.ErrSessionClosed
	}
	if err := s.ensureCustomer(ctx); err != nil {
		return "", err
	}

	fromID := s.accountID
	if fromID == 0 {
		id, err := s.primaryAccount(ctx)
		if err != nil {
			return "", err
		}
		fromID = id
	}

	query := url.Values{}
	query.Set("customerId", strconv.FormatInt(s.customerID, 10))
	query.Set("amount", principal.String())
	query.Set("downPayment", downPayment.StringFixed(2))
	query.Set("fromAccountId", strconv.FormatInt(fromID, 10))

	resp, err := s.do(ctx, http.MethodPost, s.gw.service(query, "requestLoan"), nil, "")
	if err != nil {
		return "", fmt.Errorf("request loan: %w", err)
	}

	var decision loanResponse
	if err := json.Unmarshal(resp.body, &decision); err != nil {
		return "", fmt.Errorf("%w: decode loan response: %v", channel.ErrUnexpectedResponse, err)
	}

	s.gw.logger.DebugContext(ctx, "Loan decision received",
		slog.Bool("approved", decision.Approved),
		slog.String("message", decision.Message))

	if !decision.Approved {
		return channel.LoanDenied, nil
	}
	return channel.LoanApproved, nil
}

func (s *session) Logout(ctx context.Context) error {
	if s.closed {
		return channel.ErrSessionClosed
	}
	if _, err := s.do(ctx, http.MethodGet, s.gw.resolve(logoutPage, nil), nil, ""); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	s.customerID = 0
	s.accountID = 0
	return nil
}

func (s *session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.client.CloseIdleConnections()
	return nil
}

// ensureCustomer resolves the customer id of a session that registered
// through the web form.
func (s *session) ensureCustomer(ctx context.Context) error {
	if s.customerID != 0 {
		return nil
	}
	if s.username == "" {
		return fmt.Errorf("%w: no customer in session", channel.ErrUnexpectedResponse)
	}
	c, found, err := s.lookup(ctx, s.username, s.password)
	if err != nil {
		return fmt.Errorf("resolve customer: %w", err)
	}
	if !found {
		return fmt.Errorf("%w: customer %s not found after registration", channel.ErrUnexpectedResponse, s.username)
	}
	s.customerID = c.ID
	return nil
}

func (s *session) lookup(ctx context.Context, username, password string) (customer, bool, error) {
	target := s.gw.service(nil, "login", username, password)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return customer{}, false, err
	}
	req.Header.Set("Accept", "application/json")

	httpResp, err := s.client.Do(req)
	if err != nil {
		return customer{}, false, err
	}
	resp, err := readResponse(httpResp)
	if err != nil {
		return customer{}, false, err
	}

	switch {
	case resp.status == http.StatusOK:
	case resp.status == http.StatusBadRequest ||
		resp.status == http.StatusUnauthorized ||
		resp.status == http.StatusNotFound ||
		bytes.Contains(resp.body, []byte(invalidLoginMarker)):
		return customer{}, false, nil
	default:
		return customer{}, false, fmt.Errorf("%w: status code %d", channel.ErrUnexpectedResponse, resp.status)
	}

	var c customer
	if err := json.Unmarshal(resp.body, &c); err != nil {
		return customer{}, false, fmt.Errorf("%w: decode customer: %v", channel.ErrUnexpectedResponse, err)
	}
	if c.ID == 0 {
		return customer{}, false, nil
	}
	return c, true, nil
}

func (s *session) primaryAccount(ctx context.Context) (int64, error) {
	target := s.gw.service(nil, "customers", strconv.FormatInt(s.customerID, 10), "accounts")

	resp, err := s.do(ctx, http.MethodGet, target, nil, "")
	if err != nil {
		return 0, fmt.Errorf("list accounts: %w", err)
	}

	var accounts []account
	if err := json.Unmarshal(resp.body, &accounts); err != nil {
		return 0, fmt.Errorf("%w: decode accounts: %v", channel.ErrUnexpectedResponse, err)
	}
	if len(accounts) == 0 {
		return 0, fmt.Errorf("%w: customer %d has no accounts", channel.ErrUnexpectedResponse, s.customerID)
	}
	return accounts[0].ID, nil
}

// do sends a request and fails on any non-2xx status.
func (s *session) do(ctx context.Context, method, target string, body io.Reader, contentType string) (response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return response{}, err
	}
	req.Header.Set("Accept", "application/json, text/html;q=0.9")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	httpResp, err := s.client.Do(req)
	if err != nil {
		return response{}, err
	}
	resp, err := readResponse(httpResp)
	if err != nil {
		return response{}, err
	}
	if resp.status < 200 || resp.status > 299 {
		return resp, fmt.Errorf("%w: %s %s returned status %d",
			channel.ErrUnexpectedResponse, method, req.URL.Path, resp.status)
	}
	return resp, nil
}
