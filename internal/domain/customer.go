package domain

import (
	"reflect"
	"strings"
)

const (
	ColFirstName      = "First Name"
	ColLastName       = "Last Name"
	ColAddress        = "Address"
	ColCity           = "City"
	ColState          = "State"
	ColZipCode        = "Zip Code"
	ColPhoneNumber    = "Phone Number"
	ColSSN            = "SSN"
	ColUsername       = "Username"
	ColPassword       = "Password"
	ColInitialDeposit = "Initial Deposit"
	ColDOB            = "DOB"
	ColDebitCard      = "Debit Card"
	ColCVV            = "CVV"
)

// CustomerRecord is one row of the onboarding input. Field order matters:
// required fields are reported in the order they are declared here.
type CustomerRecord struct {
	FirstName      string `col:"First Name" validate:"required"`
	LastName       string `col:"Last Name" validate:"required"`
	Address        string `col:"Address" validate:"required"`
	City           string `col:"City" validate:"required"`
	State          string `col:"State" validate:"required"`
	ZipCode        string `col:"Zip Code" validate:"required"`
	PhoneNumber    string `col:"Phone Number" validate:"required"`
	SSN            string `col:"SSN" validate:"required"`
	Username       string `col:"Username" validate:"required"`
	Password       string `col:"Password" validate:"required"`
	InitialDeposit string `col:"Initial Deposit"`
	DOB            string `col:"DOB"`
	DebitCard      string `col:"Debit Card"`
	CVV            string `col:"CVV"`

	Row     int                 `col:"-"`
	Columns map[string]struct{} `col:"-"`
}

var (
	recordColumns  []string
	requiredFields []string
	fieldIndex     = make(map[string]int)
)

func init() {
	t := reflect.TypeOf(CustomerRecord{})
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := f.Tag.Get("col")
		if name == "" || name == "-" {
			continue
		}
		recordColumns = append(recordColumns, name)
		fieldIndex[name] = i
		if strings.Contains(f.Tag.Get("validate"), "required") {
			requiredFields = append(requiredFields, name)
		}
	}
}

// RecordColumns returns the input column names in declaration order.
func RecordColumns() []string {
	return append([]string(nil), recordColumns...)
}

// RequiredFields returns the column names that must be non-blank for a record
// to be submitted, in declaration order.
func RequiredFields() []string {
	return append([]string(nil), requiredFields...)
}

func IsRecordColumn(name string) bool {
	_, ok := fieldIndex[name]
	return ok
}

// Get returns the raw value of the named column, or "" for unknown columns.
func (r *CustomerRecord) Get(column string) string {
	i, ok := fieldIndex[column]
	if !ok {
		return ""
	}
	return reflect.ValueOf(r).Elem().Field(i).String()
}

// Set stores value under the named column and marks the column present.
// Unknown columns are ignored.
func (r *CustomerRecord) Set(column, value string) bool {
	i, ok := fieldIndex[column]
	if !ok {
		return false
	}
	reflect.ValueOf(r).Elem().Field(i).SetString(value)
	r.markPresent(column)
	return true
}

func (r *CustomerRecord) markPresent(column string) {
	if r.Columns == nil {
		r.Columns = make(map[string]struct{})
	}
	r.Columns[column] = struct{}{}
}

// HasColumn reports whether the column was part of the input header.
func (r *CustomerRecord) HasColumn(column string) bool {
	_, ok := r.Columns[column]
	return ok
}

// Label identifies the record in logs.
func (r *CustomerRecord) Label() string {
	if u := strings.TrimSpace(r.Username); u != "" {
		return u
	}
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}
