package sharelink

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sharevault/backend/internal/models"
)

// Expiry bounds for newly created links, in days.
const (
	MinExpiresInDays = 1
	MaxExpiresInDays = 30
)

// State is the lifecycle state of a share link as judged at a point in time.
// Expired, Exhausted and Revoked are terminal: no further valid access is
// possible once any of them holds.
type State int

const (
	StateActiveUnused State = iota
	StateActiveUsed
	StateExpired
	StateExhausted
	StateRevoked
)

func (s State) String() string {
	switch s {
	case StateActiveUnused:
		return "active-unused"
	case StateActiveUsed:
		return "active-used"
	case StateExpired:
		return "expired"
	case StateExhausted:
		return "exhausted"
	case StateRevoked:
		return "revoked"
	default:
		return "unknown"
	}
}

var (
	// ErrLinkNotFound indicates no link exists for the presented token.
	ErrLinkNotFound = errors.New("share link not found")
	// ErrLinkExpired indicates the link's expiry timestamp has passed.
	ErrLinkExpired = errors.New("share link expired")
	// ErrLinkExhausted indicates a one-time-use link was already consumed.
	ErrLinkExhausted = errors.New("share link already used")
	// ErrLinkRevoked indicates the owner deactivated the link.
	ErrLinkRevoked = errors.New("share link revoked")
)

// ValidationError reports malformed creation input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Evaluate judges the state of a link snapshot at the given instant. It is a
// pure predicate: terminal conditions are computed fresh on every call, never
// cached, and the snapshot is not mutated. Revocation takes precedence over
// expiry, which takes precedence over exhaustion.
func Evaluate(link models.ShareLink, now time.Time) State {
	if !link.IsActive {
		return StateRevoked
	}
	if now.After(link.ExpiresAt) {
		return StateExpired
	}
	if link.OneTimeUse && link.AccessCount > 0 {
		return StateExhausted
	}
	if link.AccessCount > 0 {
		return StateActiveUsed
	}
	return StateActiveUnused
}

// IsValid reports whether an access through the link is permitted at the given
// instant.
func IsValid(link models.ShareLink, now time.Time) bool {
	switch Evaluate(link, now) {
	case StateActiveUnused, StateActiveUsed:
		return true
	default:
		return false
	}
}

// InvalidityError maps a terminal state to its sentinel error, or nil when the
// link is still valid.
func InvalidityError(link models.ShareLink, now time.Time) error {
	switch Evaluate(link, now) {
	case StateExpired:
		return ErrLinkExpired
	case StateExhausted:
		return ErrLinkExhausted
	case StateRevoked:
		return ErrLinkRevoked
	default:
		return nil
	}
}

// New builds an active, unconsumed link for the file with a fresh unguessable
// token. expiresInDays must lie in [MinExpiresInDays, MaxExpiresInDays].
func New(fileID, creatorID string, expiresInDays int, oneTimeUse bool, now time.Time) (models.ShareLink, error) {
	if expiresInDays < MinExpiresInDays || expiresInDays > MaxExpiresInDays {
		return models.ShareLink{}, &ValidationError{
			Field:   "expiresIn",
			Message: fmt.Sprintf("expiration time must be between %d and %d days", MinExpiresInDays, MaxExpiresInDays),
		}
	}

	now = now.UTC()
	return models.ShareLink{
		ID:         uuid.NewString(),
		FileID:     fileID,
		CreatedBy:  creatorID,
		Token:      uuid.NewString(),
		ExpiresAt:  now.AddDate(0, 0, expiresInDays),
		OneTimeUse: oneTimeUse,
		IsActive:   true,
		CreatedAt:  now,
	}, nil
}
