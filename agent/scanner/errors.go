package scanner

import (
	"errors"
	"fmt"
)

var (
	// ErrIPRequired is returned when a query or sync names no address.
	ErrIPRequired = errors.New("ip address required")
	// ErrInvalidRange wraps every range expression parse failure.
	ErrInvalidRange = errors.New("invalid ip range")
	// ErrUnreachable marks a sync that could not reach the device via SNMP.
	ErrUnreachable = errors.New("could not reach device via SNMP")
)

// UnreachableError reports the address that was last attempted and, when
// connectivity diagnosis ran, what it found.
type UnreachableError struct {
	IP        string
	Diagnosis *Diagnosis
	Err       error
}

func (e *UnreachableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s at %s: %v", ErrUnreachable, e.IP, e.Err)
	}
	return fmt.Sprintf("%s at %s", ErrUnreachable, e.IP)
}

func (e *UnreachableError) Is(target error) bool { return target == ErrUnreachable }

func (e *UnreachableError) Unwrap() error { return e.Err }
