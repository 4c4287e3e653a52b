package intake

import (
	"errors"
	"net/http"
)

// Error codes surfaced to API callers
const (
	CodeMissingAPIKey    = "missing_api_key"
	CodeUnauthorized     = "unauthorized"
	CodeIPNotAllowed     = "ip_not_allowed"
	CodeValidation       = "validation_error"
	CodeDuplicateEmail   = "duplicate_email"
	CodeDuplicatePhone   = "duplicate_phone"
	CodeDuplicateLead    = "duplicate_lead"
	CodeQueryError       = "query_error"
	CodeInternalError    = "internal_error"
	CodeMethodNotAllowed = "method_not_allowed"
)

// Error is a failure that maps directly onto the error envelope.
type Error struct {
	Status  int
	Code    string
	Message string
	Details interface{}
	// Err is the underlying cause, never shown to callers beyond Message.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinel errors; compare with errors.Is.
var (
	ErrMissingAPIKey    = &Error{Status: http.StatusUnauthorized, Code: CodeMissingAPIKey, Message: "API key is required"}
	ErrUnauthorized     = &Error{Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: "Invalid or inactive API key"}
	ErrIPNotAllowed     = &Error{Status: http.StatusForbidden, Code: CodeIPNotAllowed, Message: "IP address not allowed"}
	ErrDuplicateEmail   = &Error{Status: http.StatusConflict, Code: CodeDuplicateEmail, Message: "Lead with this email already exists"}
	ErrDuplicatePhone   = &Error{Status: http.StatusConflict, Code: CodeDuplicatePhone, Message: "Lead with this phone number already exists"}
	ErrDuplicateLead    = &Error{Status: http.StatusConflict, Code: CodeDuplicateLead, Message: "Duplicate lead found"}
	ErrMethodNotAllowed = &Error{Status: http.StatusMethodNotAllowed, Code: CodeMethodNotAllowed, Message: "Method not allowed"}
)

// FieldsDetails lists the required fields in a validation error.
type FieldsDetails struct {
	Fields []string `json:"fields"`
}

// FieldDetails names the offending field and value in a validation error.
type FieldDetails struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func validationError(message string, details interface{}) *Error {
	return &Error{Status: http.StatusBadRequest, Code: CodeValidation, Message: message, Details: details}
}

func errMissingFields() *Error {
	return validationError("Missing required fields", FieldsDetails{Fields: []string{"firstName", "lastName", "email"}})
}

func errInvalidEmail(value string) *Error {
	return validationError("Invalid email format", FieldDetails{Field: "email", Value: value})
}

// serverError wraps an unexpected failure with the code used on the
// current path: query_error for reads, internal_error otherwise.
func serverError(code string, err error) *Error {
	message := "Internal server error"
	if err != nil && err.Error() != "" {
		message = err.Error()
	}
	return &Error{Status: http.StatusInternalServerError, Code: code, Message: message, Err: err}
}

// asError converts any error into an *Error, defaulting to a server error with code.
func asError(err error, code string) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return serverError(code, err)
}
