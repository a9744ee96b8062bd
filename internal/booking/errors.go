package booking

import (
	"errors"
	"fmt"

	"github.com/essenza/room-booking/internal/model"
)

// Sentinel errors forming the engine's failure taxonomy. Handlers translate
// them into HTTP statuses; the messages surfaced to callers never contain
// storage-layer detail.
var (
	// ErrInvalidInput covers empty slot sets, malformed dates, unknown
	// period values and non-positive prices. Rejected before any write.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRoomNotFound means the requested room does not exist.
	ErrRoomNotFound = errors.New("room not found")

	// ErrBookingNotFound means the booking to cancel does not exist.
	ErrBookingNotFound = errors.New("booking not found")

	// ErrForbidden means the booking belongs to a different user.
	ErrForbidden = errors.New("forbidden")

	// ErrNotCancellable means the booking is already in a terminal state.
	ErrNotCancellable = errors.New("booking already finished")

	// ErrPaymentInitiation means the payment collaborator returned an error
	// or no redirect URL. The batch has been compensated when this
	// surfaces; no slots stay held without a reachable payment path.
	ErrPaymentInitiation = errors.New("payment session initiation failed")

	// ErrStorage wraps transient persistence failures. The caller may
	// retry; the batch has been compensated when this surfaces.
	ErrStorage = errors.New("storage error")
)

// ConflictError reports the first slot of a batch that is already held,
// whether it was caught by the fast-path check or by losing the insertion
// race. The message is user-presentable and names the offending date and
// period.
type ConflictError struct {
	Date   string
	Period model.Period
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("O período %s do dia %s não está disponível.", e.Period.Label(), e.Date)
}
