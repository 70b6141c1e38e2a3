package alpaca

import (
	"errors"
	"fmt"
)

// ErrUnreachable marks an I/O failure that survived the retry budget.
var ErrUnreachable = errors.New("broker unreachable")

// BrokerError is a non-2xx response after retries are exhausted.
type BrokerError struct {
	Status int
	Body   string
}

func (e *BrokerError) Error() string {
	return fmt.Sprintf("alpaca HTTP %d: %s", e.Status, e.Body)
}

// AsBrokerError unwraps err into a *BrokerError if one is in the chain.
func AsBrokerError(err error) (*BrokerError, bool) {
	var be *BrokerError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}
