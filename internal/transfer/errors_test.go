package transfer

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestTransferErrorMessage(t *testing.T) {
	cause := fmt.Errorf("after 3 attempts: %w", errors.New("http status 503"))

	partErr := &TransferError{File: "scene.jpg", Part: 2, Err: cause}
	msg := partErr.Error()
	if !strings.Contains(msg, "part 2") {
		t.Errorf("part error message %q missing part index", msg)
	}
	if !strings.Contains(msg, "after 3 attempts") {
		t.Errorf("part error message %q lost the retry cause", msg)
	}
	if !errors.Is(partErr, errors.Unwrap(cause)) {
		t.Error("TransferError does not unwrap to the root cause")
	}

	fileErr := &TransferError{File: "scene.jpg", Part: -1, Err: cause}
	if msg := fileErr.Error(); strings.Contains(msg, "part") {
		t.Errorf("non-part error message %q mentions a part", msg)
	}
}
