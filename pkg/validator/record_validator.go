package validator

import (
	"bank_onboarder/internal/domain"
	"errors"
	"reflect"
	"strings"

	playground "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidDeposit = errors.New("invalid initial deposit")
)

// blankSentinels are cell values spreadsheet exports use for "no value".
var blankSentinels = map[string]struct{}{
	"nan":  {},
	"none": {},
	"null": {},
	"n/a":  {},
}

// Outcome is either Valid (Deposit, Corrected) or Invalid (Missing).
type Outcome struct {
	Valid     bool
	Deposit   decimal.Decimal
	Corrected bool
	Missing   []string
}

type RecordValidator struct {
	validate       *playground.Validate
	defaultDeposit decimal.Decimal
}

func NewRecordValidator(defaultDeposit decimal.Decimal) *RecordValidator {
	if !defaultDeposit.IsPositive() {
		defaultDeposit = decimal.NewFromInt(100)
	}

	v := playground.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := f.Tag.Get("col")
		if name == "-" {
			return ""
		}
		return name
	})

	return &RecordValidator{
		validate:       v,
		defaultDeposit: defaultDeposit,
	}
}

func (v *RecordValidator) Validate(rec domain.CustomerRecord) Outcome {
	if missing := v.MissingFields(rec); len(missing) > 0 {
		return Outcome{Missing: missing}
	}

	deposit, err := ParseDeposit(rec.InitialDeposit)
	if err != nil || !deposit.IsPositive() {
		return Outcome{Valid: true, Deposit: v.defaultDeposit, Corrected: true}
	}
	return Outcome{Valid: true, Deposit: deposit}
}

// MissingFields lists the required columns that are blank, in the order the
// record declares them.
func (v *RecordValidator) MissingFields(rec domain.CustomerRecord) []string {
	normalized := normalize(rec)

	err := v.validate.Struct(&normalized)
	if err == nil {
		return nil
	}

	var fieldErrs playground.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return domain.RequiredFields()
	}

	missing := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		missing = append(missing, fe.Field())
	}
	return missing
}

// ParseDeposit reads a money amount, tolerating a currency sign, thousands
// separators and surrounding spaces.
func ParseDeposit(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if IsBlank(s) {
		return decimal.Zero, ErrInvalidDeposit
	}
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Join(ErrInvalidDeposit, err)
	}
	return d, nil
}

// IsBlank reports whether a cell holds no usable value.
func IsBlank(value string) bool {
	s := strings.TrimSpace(value)
	if s == "" {
		return true
	}
	_, ok := blankSentinels[strings.ToLower(s)]
	return ok
}

func normalize(rec domain.CustomerRecord) domain.CustomerRecord {
	out := domain.CustomerRecord{Row: rec.Row}
	for _, col := range domain.RecordColumns() {
		value := rec.Get(col)
		if IsBlank(value) {
			value = ""
		}
		out.Set(col, strings.TrimSpace(value))
	}
	return out
}
