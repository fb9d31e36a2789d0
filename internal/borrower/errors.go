package borrower

import (
	"errors"
	"fmt"
)

// ErrorKind classifies borrower-facing failures.
type ErrorKind string

const (
	KindInvalid         ErrorKind = "invalid"
	KindExpired         ErrorKind = "expired"
	KindNetwork         ErrorKind = "network"
	KindConsentDeclined ErrorKind = "consent_declined"
	KindConnection      ErrorKind = "connection"
	KindCompletion      ErrorKind = "completion"
)

const (
	ActionRetry = "retry"
	ActionHome  = "home"
)

// ErrorDisplay is what the shared error screen renders for a kind.
type ErrorDisplay struct {
	Kind      ErrorKind `json:"kind"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Icon      string    `json:"icon"`
	Retryable bool      `json:"retryable"`
	Action    string    `json:"action"`
}

var catalogue = map[ErrorKind]ErrorDisplay{
	KindInvalid: {
		Kind: KindInvalid, Title: "Invalid verification link",
		Message: "This verification link is not valid. Please contact your lender for a new link.",
		Icon:    "link-broken", Action: ActionHome,
	},
	KindExpired: {
		Kind: KindExpired, Title: "Verification link expired",
		Message: "This verification link has expired. Please ask your lender to resend it.",
		Icon:    "clock", Action: ActionHome,
	},
	KindNetwork: {
		Kind: KindNetwork, Title: "Connection problem",
		Message: "We could not reach our servers. Check your connection and try again.",
		Icon:    "wifi-off", Retryable: true, Action: ActionRetry,
	},
	KindConsentDeclined: {
		Kind: KindConsentDeclined, Title: "Consent declined",
		Message: "You declined to share your financial data, so the verification cannot continue.",
		Icon:    "shield-x", Action: ActionHome,
	},
	KindConnection: {
		Kind: KindConnection, Title: "Bank connection failed",
		Message: "We could not start the connection with your bank. Please try again.",
		Icon:    "bank", Retryable: true, Action: ActionRetry,
	},
	KindCompletion: {
		Kind: KindCompletion, Title: "Could not finish verification",
		Message: "Something went wrong while finishing your verification. Please try again.",
		Icon:    "alert-triangle", Retryable: true, Action: ActionRetry,
	},
}

// Describe returns the display for kind.
func Describe(kind ErrorKind) (ErrorDisplay, bool) {
	d, ok := catalogue[kind]
	return d, ok
}

// FlowError is a failure the borrower sees on the error screen.
type FlowError struct {
	Kind ErrorKind
	Err  error
}

func (e *FlowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("borrower %s: %v", e.Kind, e.Err)
	}
	return "borrower " + string(e.Kind)
}

func (e *FlowError) Unwrap() error { return e.Err }

func flowError(kind ErrorKind, err error) error {
	return &FlowError{Kind: kind, Err: err}
}

// KindOf extracts the error kind, if err carries one.
func KindOf(err error) (ErrorKind, bool) {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}

var (
	// ErrStepOutOfOrder indicates the action does not belong to the current step.
	ErrStepOutOfOrder = errors.New("step out of order")
	// ErrConsentIncomplete indicates consent was given for only some categories.
	ErrConsentIncomplete = errors.New("consent must cover all data categories")
	// ErrNoConnectedAccounts indicates completion was attempted without a linked account.
	ErrNoConnectedAccounts = errors.New("at least one connected account is required")
	// ErrInvalidAccount indicates a reported account lacks an identifier.
	ErrInvalidAccount = errors.New("connected account id is required")
	// ErrMissingFields indicates required personal data is still absent.
	ErrMissingFields = errors.New("required customer fields are missing")
)

// StepError reports an action attempted at the wrong step.
type StepError struct {
	Current  Step
	Expected Step
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step out of order: at %s, expected %s", e.Current, e.Expected)
}

func (e *StepError) Is(target error) bool { return target == ErrStepOutOfOrder }

// MissingFieldsError lists the required fields that are still empty.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("required customer fields are missing: %v", e.Fields)
}

func (e *MissingFieldsError) Is(target error) bool { return target == ErrMissingFields }
