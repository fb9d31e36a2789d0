package verification

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// Customer is the personal-data snapshot attached to a request.
type Customer struct {
	ExternalID   string `json:"external_id,omitempty"`
	FirstName    string `json:"first_name"`
	MiddleName   string `json:"middle_name,omitempty"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	DateOfBirth  string `json:"date_of_birth"`
	Address      string `json:"address"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	ZipCode      string `json:"zip_code"`
	SSNLast4     string `json:"ssn_last4,omitempty"`
}

// Required personal-data fields, in the order the wizard asks for them.
const (
	FieldFirstName   = "first_name"
	FieldLastName    = "last_name"
	FieldEmail       = "email"
	FieldPhone       = "phone"
	FieldDateOfBirth = "date_of_birth"
	FieldAddress     = "address"
	FieldCity        = "city"
	FieldState       = "state"
	FieldZipCode     = "zip_code"
)

// RequiredFields is the fixed list checked before consent.
var RequiredFields = []string{
	FieldFirstName, FieldLastName, FieldEmail, FieldPhone, FieldDateOfBirth,
	FieldAddress, FieldCity, FieldState, FieldZipCode,
}

// ErrInvalidCustomer wraps customer field validation failures.
var ErrInvalidCustomer = errors.New("invalid customer info")

func (c Customer) field(name string) string {
	switch name {
	case FieldFirstName:
		return c.FirstName
	case FieldLastName:
		return c.LastName
	case FieldEmail:
		return c.Email
	case FieldPhone:
		return c.Phone
	case FieldDateOfBirth:
		return c.DateOfBirth
	case FieldAddress:
		return c.Address
	case FieldCity:
		return c.City
	case FieldState:
		return c.State
	case FieldZipCode:
		return c.ZipCode
	}
	return ""
}

// MissingFields returns the required fields that are empty or whitespace.
func (c Customer) MissingFields() []string {
	missing := make([]string, 0, len(RequiredFields))
	for _, name := range RequiredFields {
		if strings.TrimSpace(c.field(name)) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// FullName joins first, middle and last names.
func (c Customer) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{c.FirstName, c.MiddleName, c.LastName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Merge overlays the non-empty fields of update onto c.
func (c Customer) Merge(update Customer) Customer {
	pick := func(current, next string) string {
		if strings.TrimSpace(next) != "" {
			return strings.TrimSpace(next)
		}
		return current
	}
	c.ExternalID = pick(c.ExternalID, update.ExternalID)
	c.FirstName = pick(c.FirstName, update.FirstName)
	c.MiddleName = pick(c.MiddleName, update.MiddleName)
	c.LastName = pick(c.LastName, update.LastName)
	c.Email = pick(c.Email, update.Email)
	c.Phone = pick(c.Phone, update.Phone)
	c.DateOfBirth = pick(c.DateOfBirth, update.DateOfBirth)
	c.Address = pick(c.Address, update.Address)
	c.AddressLine2 = pick(c.AddressLine2, update.AddressLine2)
	c.City = pick(c.City, update.City)
	c.State = strings.ToUpper(pick(c.State, update.State))
	c.ZipCode = pick(c.ZipCode, update.ZipCode)
	c.SSNLast4 = pick(c.SSNLast4, update.SSNLast4)
	return c
}

// Validate checks the format of every populated field. Presence is checked by MissingFields.
func (c Customer) Validate(now time.Time) error {
	if c.Email != "" {
		if addr, err := mail.ParseAddress(c.Email); err != nil || addr.Address != c.Email {
			return fmt.Errorf("%w: email is not valid", ErrInvalidCustomer)
		}
	}
	if c.Phone != "" {
		if strings.Trim(c.Phone, "0123456789 +()-") != "" {
			return fmt.Errorf("%w: phone may only contain digits, spaces and +()-", ErrInvalidCustomer)
		}
		if n := countDigits(c.Phone); n < 10 || n > 15 {
			return fmt.Errorf("%w: phone must have 10 to 15 digits", ErrInvalidCustomer)
		}
	}
	if c.DateOfBirth != "" {
		dob, err := time.Parse(time.DateOnly, c.DateOfBirth)
		if err != nil {
			return fmt.Errorf("%w: date_of_birth must be YYYY-MM-DD", ErrInvalidCustomer)
		}
		if !dob.Before(now) {
			return fmt.Errorf("%w: date_of_birth must be in the past", ErrInvalidCustomer)
		}
	}
	if c.State != "" && (len(c.State) != 2 || !isLetters(c.State)) {
		return fmt.Errorf("%w: state must be a 2-letter code", ErrInvalidCustomer)
	}
	if c.ZipCode != "" {
		zip := strings.ReplaceAll(c.ZipCode, "-", "")
		if (len(zip) != 5 && len(zip) != 9) || countDigits(zip) != len(zip) {
			return fmt.Errorf("%w: zip_code must be 5 or 9 digits", ErrInvalidCustomer)
		}
	}
	if c.SSNLast4 != "" && (len(c.SSNLast4) != 4 || countDigits(c.SSNLast4) != 4) {
		return fmt.Errorf("%w: ssn_last4 must be 4 digits", ErrInvalidCustomer)
	}
	return nil
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

func isLetters(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}
