package authz

// DeniedError wraps a deny verdict so orchestrators can surface it through
// error returns without losing the structured decision.
type DeniedError struct {
	Decision Decision
}

func (e *DeniedError) Error() string {
	switch e.Decision.Reason {
	case DenyPrivate:
		return "access denied: file is private"
	case DenyNotOwner:
		return "access denied: not the owner"
	case DenyLinkInvalid:
		if e.Decision.LinkErr != nil {
			return "access denied: " + e.Decision.LinkErr.Error()
		}
		return "access denied: share link invalid"
	default:
		return "access denied"
	}
}

// Unwrap exposes the differentiated link invalidity reason for errors.Is.
func (e *DeniedError) Unwrap() error {
	return e.Decision.LinkErr
}
