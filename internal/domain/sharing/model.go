package sharing

import (
	"errors"
	"fmt"

	"github.com/healthshare/healthshare/internal/domain/observation"
)

// Status is the delivery state of one share attempt.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// HistoryItem records one share attempt.
type HistoryItem struct {
	ID         string                 `json:"id"`
	Date       string                 `json:"date"`
	DataTypes  []observation.DataType `json:"dataTypes"`
	Recipient  string                 `json:"recipient"`
	Status     Status                 `json:"status"`
	DeliveryID string                 `json:"deliveryId,omitempty"`
}

var (
	ErrItemNotFound   = errors.New("history item not found")
	ErrNothingToShare = errors.New("no consented data available to share")
	errEmptyRecipient = errors.New("recipient is required")
)

// TransitionError reports a status change other than pending to terminal.
type TransitionError struct {
	ID   string
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("history item %s: cannot move from %s to %s", e.ID, e.From, e.To)
}

// RequestError reports an unusable share request.
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string { return "invalid share request: " + e.Err.Error() }

func (e *RequestError) Unwrap() error { return e.Err }
