package ledger

import "errors"

var (
	ErrUnauthorized        = errors.New("unauthorized caller")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrPremiumCapExceeded  = errors.New("premium cap exceeded")
	ErrDuplicateVote       = errors.New("caller already voted for this airline")
	ErrDuplicateResponse   = errors.New("oracle already responded to this request")
	ErrAlreadyRegistered   = errors.New("already registered")
	ErrFlightNotRegistered = errors.New("flight not registered")
	ErrUnknownRequest      = errors.New("no matching status request")
	ErrNoCredit            = errors.New("no credit to withdraw")
	ErrTransferFailed      = errors.New("funds transfer failed")
	ErrNotFunded           = errors.New("airline not funded")
	ErrNotOperational      = errors.New("ledger is not operational")
	ErrFlightFinalized     = errors.New("flight status already final")
	ErrInvalidAddress      = errors.New("invalid address")
	ErrInvalidStatus       = errors.New("invalid status code")
	ErrNotFound            = errors.New("not found")
)
