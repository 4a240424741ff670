package transfer

import "fmt"

// TransferError identifies which file and part a transfer failure
// belongs to. It wraps the underlying cause for errors.Is/As; retry
// exhaustion details travel in the wrapped error.
type TransferError struct {
	File string
	Part int // zero-based part index; -1 when not part-specific
	Err  error
}

func (e *TransferError) Error() string {
	if e.Part >= 0 {
		return fmt.Sprintf("transfer %s part %d: %v", e.File, e.Part, e.Err)
	}
	return fmt.Sprintf("transfer %s: %v", e.File, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}
