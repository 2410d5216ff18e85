package bizerror

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound               = errors.New("record not found")
	ErrForbidden              = errors.New("forbidden")
	ErrUnauthenticated        = errors.New("unauthenticated")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrUnknownKind            = errors.New("unknown workflow kind")
	ErrUnknownState           = errors.New("unknown state")
	ErrInvalidAmount          = errors.New("amount must not be negative")
)

type BizError interface {
	Respond() *BizErrorDetail
}

type BizErrorDetail struct {
	Status  int
	Code    string
	Message string

	Data  interface{}
	Cause error
}

type ErrBadParam struct {
	Cause error
}

func (e *ErrBadParam) Unwrap() error {
	return e.Cause
}
func (e *ErrBadParam) Error() string {
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "common.bad_param"
}
func (e *ErrBadParam) Respond() *BizErrorDetail {
	message := "common.bad_param"
	if e.Cause != nil {
		message = e.Cause.Error()
	}
	return &BizErrorDetail{Status: http.StatusBadRequest, Code: "common.bad_param", Message: message, Data: nil}
}

// ErrInvalidTransition rejects a requested state that is not the current state nor one of its
// immediate successors.
type ErrInvalidTransition struct {
	Kind      string
	Current   string
	Requested string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("transition from %s to %s is invalid", e.Current, e.Requested)
}
func (e *ErrInvalidTransition) Respond() *BizErrorDetail {
	return &BizErrorDetail{Status: http.StatusBadRequest, Code: "workflow.invalid_transition", Message: e.Error(),
		Data: map[string]string{"kind": e.Kind, "current": e.Current, "requested": e.Requested}}
}

// ErrConfiguration reports a malformed machine or recipient table.
type ErrConfiguration struct {
	Reason string
}

func (e *ErrConfiguration) Error() string {
	return "configuration error: " + e.Reason
}
func (e *ErrConfiguration) Respond() *BizErrorDetail {
	return &BizErrorDetail{Status: http.StatusInternalServerError, Code: "workflow.configuration_error", Message: e.Error()}
}

func Configurationf(format string, args ...interface{}) error {
	return &ErrConfiguration{Reason: fmt.Sprintf(format, args...)}
}

// ErrStoreUnavailable wraps a transport level failure of the record store.
type ErrStoreUnavailable struct {
	Cause error
}

func (e *ErrStoreUnavailable) Unwrap() error {
	return e.Cause
}
func (e *ErrStoreUnavailable) Error() string {
	if e.Cause != nil {
		return "store unavailable: " + e.Cause.Error()
	}
	return "store unavailable"
}
func (e *ErrStoreUnavailable) Respond() *BizErrorDetail {
	return &BizErrorDetail{Status: http.StatusServiceUnavailable, Code: "store.unavailable", Message: e.Error()}
}
