package transfer

import (
	"errors"
	"fmt"
)

// ErrNoMechanism is returned when a transfer names neither a URL nor a mechanism.
var ErrNoMechanism = errors.New("transfer needs a url or a mechanism name")

// TransferFailedError reports that the mechanism could not fetch URL.
// Call Run directly to see the mechanism's own output.
type TransferFailedError struct {
	URL string
}

func (e *TransferFailedError) Error() string {
	return fmt.Sprintf("transfer of %q failed", e.URL)
}
