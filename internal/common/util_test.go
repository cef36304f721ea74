package common

import (
	"errors"
	"fmt"
	"testing"
)

func TestWipeByteArray_ZerosBuffer(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	WipeByteArray(buf)
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("expected buf[%d]==0, got %d", i, v)
		}
	}
}

func TestWipeByteArray_NilSafe(t *testing.T) {
	WipeByteArray(nil)
}

func TestGenerateRandByteArray_Basic(t *testing.T) {
	const n = 24
	buf := GenerateRandByteArray(n)
	if len(buf) != n {
		t.Fatalf("expected length %d, got %d", n, len(buf))
	}
}

func TestGenerateRandByteArray_EntropyHint(t *testing.T) {
	const n = 32
	a := GenerateRandByteArray(n)
	b := GenerateRandByteArray(n)

	identical := true
	for i := range a {
		if a[i] != b[i] {
			identical = false
			break
		}
	}
	if identical {
		t.Logf("warning: two GenerateRandByteArray(%d) results are identical; extremely unlikely", n)
	}
}

func TestSubmitted_DistinguishesLocalFromNetworkFailures(t *testing.T) {
	local := []error{ErrValidation, ErrAuthorization, ErrBusy, ErrInvalidState, ErrNotConnected, ErrSubmissionRejected}
	for _, err := range local {
		if Submitted(fmt.Errorf("wrapped: %w", err)) {
			t.Fatalf("%v must not count as submitted", err)
		}
	}

	network := []error{ErrLedgerRevert, ErrTxDropped, ErrStillPending}
	for _, err := range network {
		if !Submitted(fmt.Errorf("wrapped: %w", err)) {
			t.Fatalf("%v must count as submitted", err)
		}
	}

	estimated := fmt.Errorf("%w: %w: mintGiftCard: Token already exists", ErrSubmissionRejected, ErrLedgerRevert)
	if Submitted(estimated) {
		t.Fatalf("a revert found before acceptance must not count as submitted")
	}

	if Submitted(errors.New("other")) {
		t.Fatalf("unrelated error must not count as submitted")
	}
}
