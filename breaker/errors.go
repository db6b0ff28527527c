package breaker

import "fmt"

// OpenCircuitBreakerError is raised by RunOrFail when the observed state is
// OPEN: f is never invoked.
type OpenCircuitBreakerError struct {
	Key string
}

func (e *OpenCircuitBreakerError) Error() string {
	return fmt.Sprintf("breaker: key %q is open", e.Key)
}

// IsolatedCircuitBreakerError is raised by RunOrFail when the observed
// state is ISOLATED: f is never invoked.
type IsolatedCircuitBreakerError struct {
	Key string
}

func (e *IsolatedCircuitBreakerError) Error() string {
	return fmt.Sprintf("breaker: key %q is isolated", e.Key)
}
