package types

import "fmt"

// =============================================================================
// ERROR TAXONOMY
// =============================================================================

// ErrorKind classifies every error the loader can report. The taxonomy is
// closed; the database stores it in the parser_error enum.
type ErrorKind string

// Decoding-time kinds.
const (
	KindHeaderError   ErrorKind = "HeaderError"
	KindTrailerError  ErrorKind = "TrailerError"
	KindItemError     ErrorKind = "ItemError"
	KindFacturaError  ErrorKind = "FacturaError"
	KindCurrencyError ErrorKind = "CurrencyError"
	KindInvalidDate   ErrorKind = "InvalidDate"
	KindParseInteger  ErrorKind = "ParseInteger"
	KindParseFloat    ErrorKind = "ParseFloat"
)

// Validation-time kinds.
const (
	KindItemSumNotEqual ErrorKind = "ItemSumNotEqual"
	KindNotSameItems    ErrorKind = "NotSameItems"
)

// Kinds owned by the loader and the sinks.
const (
	KindInvalidPath              ErrorKind = "InvalidPath"
	KindFailedDBConnection       ErrorKind = "FailedDBConnection"
	KindInvalidNumberOfArguments ErrorKind = "InvalidNumberOfArguments"
)

// ErrorKinds lists every kind in declaration order.
var ErrorKinds = []ErrorKind{
	KindHeaderError,
	KindTrailerError,
	KindItemError,
	KindFacturaError,
	KindCurrencyError,
	KindInvalidDate,
	KindParseInteger,
	KindParseFloat,
	KindItemSumNotEqual,
	KindNotSameItems,
	KindInvalidPath,
	KindFailedDBConnection,
	KindInvalidNumberOfArguments,
}

// String implements fmt.Stringer.
func (k ErrorKind) String() string {
	return string(k)
}

// IsValidation reports whether k is produced by the validator.
func (k ErrorKind) IsValidation() bool {
	return k == KindItemSumNotEqual || k == KindNotSameItems
}

// ExpectedFound builds the "Expected X found Y" message every error carries.
func ExpectedFound(expected, found string) string {
	return fmt.Sprintf("Expected %s found %s", expected, found)
}

// =============================================================================
// PARSE ERROR
// =============================================================================

// ParseError is a classified decoding failure.
type ParseError struct {
	Kind    ErrorKind
	Message string
}

// NewParseError builds a ParseError with an "Expected X found Y" message.
func NewParseError(kind ErrorKind, expected, found string) *ParseError {
	return &ParseError{Kind: kind, Message: ExpectedFound(expected, found)}
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// =============================================================================
// VALIDATION ERROR
// =============================================================================

// ValidationError is a post-parse inconsistency in one invoice.
type ValidationError struct {
	Kind ErrorKind

	// InvoiceNumber identifies the offending invoice.
	InvoiceNumber int32

	// Slot is the index of the invoice in its ticket.
	Slot int

	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: invoice %d: %s", e.Kind, e.InvoiceNumber, e.Message)
}
