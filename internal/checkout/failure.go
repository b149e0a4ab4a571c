package checkout

import "fmt"

type FailureKind int

const (
	FailValidation FailureKind = iota + 1
	FailOutOfStock
	FailSessionCreate
	FailInternal
)

// Failure is the typed result of a checkout that did not produce a session.
// Callers switch on Kind; every kind guarantees zero net change to the
// stock/reserved counters and no orphaned order.
type Failure struct {
	Kind      FailureKind
	Reason    string
	ProductID string // set for FailOutOfStock
	Qty       int    // set for FailOutOfStock
	Err       error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Reason, f.Err)
	}
	return f.Reason
}

func (f *Failure) Unwrap() error { return f.Err }

func validationf(format string, args ...any) *Failure {
	return &Failure{Kind: FailValidation, Reason: fmt.Sprintf(format, args...)}
}

func outOfStock(productID string, qty int) *Failure {
	return &Failure{
		Kind:      FailOutOfStock,
		Reason:    fmt.Sprintf("Not enough stock for product %s (quantity %d)", productID, qty),
		ProductID: productID,
		Qty:       qty,
	}
}

func sessionFailed(err error) *Failure {
	return &Failure{Kind: FailSessionCreate, Reason: "payment session could not be created", Err: err}
}

func internal(err error) *Failure {
	return &Failure{Kind: FailInternal, Reason: "internal error", Err: err}
}
