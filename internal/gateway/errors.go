package gateway

import (
	"errors"
	"fmt"
)

// Classification sentinels adapters wrap around provider failures. The
// orchestrator treats every class the same way (record, then fall back);
// the mimo adapter additionally uses ErrAuth to decide when to retry via
// its legacy protocol.
var (
	// ErrPhoneFormat marks a destination that failed the adapter's
	// country-specific format check. The network is never contacted.
	ErrPhoneFormat = errors.New("invalid destination number")
	// ErrAuth marks credentials the provider rejected.
	ErrAuth = errors.New("gateway authentication failed")
	// ErrRejected marks a message the provider accepted the connection
	// for but refused to queue.
	ErrRejected = errors.New("gateway rejected message")
	// ErrNetwork marks timeouts and transport-level failures.
	ErrNetwork = errors.New("gateway network failure")
)

// WrapPhoneFormat annotates an error as a destination format failure.
func WrapPhoneFormat(err error) error { return wrap(ErrPhoneFormat, err) }

// WrapAuth annotates an error as a credential rejection.
func WrapAuth(err error) error { return wrap(ErrAuth, err) }

// WrapRejected annotates an error as a provider-side message rejection.
func WrapRejected(err error) error { return wrap(ErrRejected, err) }

// WrapNetwork annotates an error as a transport failure.
func WrapNetwork(err error) error { return wrap(ErrNetwork, err) }

func wrap(sentinel, err error) error {
	if err == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %v", sentinel, err)
}
