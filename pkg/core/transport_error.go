package core

import "fmt"

// TransportError wraps low-level connection failures (dial, HTTP, socket
// I/O) so callers can distinguish them from provider-reported errors.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("transport %s %s: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
