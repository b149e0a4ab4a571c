package orders

import "testing"

func TestStatusTransitions(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusPending, StatusPaid},
		{StatusPending, StatusFailed},
		{StatusPaid, StatusRefunded},
	}
	for _, tr := range allowed {
		if !CanTransition(tr.from, tr.to) {
			t.Errorf("%s -> %s should be allowed", tr.from, tr.to)
		}
	}

	denied := []struct{ from, to Status }{
		{StatusPaid, StatusPending},
		{StatusPaid, StatusFailed},
		{StatusFailed, StatusPaid},
		{StatusFailed, StatusPending},
		{StatusRefunded, StatusPaid},
		{StatusPending, StatusRefunded},
	}
	for _, tr := range denied {
		if CanTransition(tr.from, tr.to) {
			t.Errorf("%s -> %s must be denied", tr.from, tr.to)
		}
	}
}
