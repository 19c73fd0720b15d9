package actions

import "fmt"

// MalformedActionError is returned when an encoded action cannot be parsed.
type MalformedActionError struct {
	Kind   string
	Reason string
}

func (e MalformedActionError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("malformed action: %s", e.Reason)
	}
	return fmt.Sprintf("malformed %s action: %s", e.Kind, e.Reason)
}

func (e MalformedActionError) Is(target error) bool {
	_, ok := target.(MalformedActionError)
	return ok
}
