package models

// Provenance says whether a value has been confirmed by a ledger receipt.
type Provenance int

const (
	// Optimistic values reflect local intent that has not been confirmed.
	Optimistic Provenance = iota
	// Confirmed values were read from the ledger or settled by a receipt.
	Confirmed
)

func (p Provenance) String() string {
	if p == Confirmed {
		return "confirmed"
	}
	return "optimistic"
}

// Tagged wraps a value with its provenance. Key names the lifecycle operation
// an Optimistic value depends on.
type Tagged[T any] struct {
	Value      T
	Provenance Provenance
	Key        string
}

func Confirm[T any](v T) Tagged[T] {
	return Tagged[T]{Value: v, Provenance: Confirmed}
}

func Expect[T any](v T, key string) Tagged[T] {
	return Tagged[T]{Value: v, Provenance: Optimistic, Key: key}
}

func (t Tagged[T]) IsConfirmed() bool { return t.Provenance == Confirmed }
