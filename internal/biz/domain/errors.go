package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrReplyDisabled means the account has AI replies turned off
	ErrReplyDisabled = errors.New("ai reply disabled")

	// ErrStaleMessage means a newer buyer message in the same burst owns the reply
	ErrStaleMessage = errors.New("superseded by newer message")

	// ErrMissingAPIKey means an OpenAI-compatible provider was selected without credentials
	ErrMissingAPIKey = errors.New("api key not configured")

	// ErrItemNotFound means no item row exists for the account/item pair
	ErrItemNotFound = errors.New("item not found")
)

// IsNoOp reports whether err is a clean no-reply outcome rather than a failure
func IsNoOp(err error) bool {
	return errors.Is(err, ErrReplyDisabled) || errors.Is(err, ErrStaleMessage)
}

// ProviderError is a failed completion call
type ProviderError struct {
	Provider string
	Status   int // HTTP status, 0 when the request never completed
	Body     string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Status, e.Body)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Body)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Store operations reported in StoreError.Op
const (
	OpAppendInbound = "append_inbound"
	OpAppendReply   = "append_reply"
	OpQueryRecent   = "query_recent"
	OpCountBargain  = "count_bargain"
	OpLoadSettings  = "load_settings"
	OpLoadHistory   = "load_history"
)

// StoreError is a failed conversation store or settings access
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// LostInbound reports whether the buyer's own message failed to persist
func (e *StoreError) LostInbound() bool {
	return e.Op == OpAppendInbound
}
