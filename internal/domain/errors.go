package domain

// DomainError is a stable, comparable error kind. Wrap it with fmt.Errorf
// and match it with errors.Is.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *DomainError) Error() string {
	return e.Message
}

func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

var (
	ErrNotFound        = NewDomainError("NOT_FOUND", "record not found")
	ErrAlreadyExists   = NewDomainError("ALREADY_EXISTS", "record already exists")
	ErrUnknownCustomer = NewDomainError("UNKNOWN_CUSTOMER", "referenced customer does not exist")
	ErrInvalidEvent    = NewDomainError("INVALID_EVENT", "event is malformed")
	ErrNonNumeric      = NewDomainError("NON_NUMERIC", "value is not a finite number")
)
