package orders

type Status string

const (
	StatusPending  Status = "pending"
	StatusPaid     Status = "paid"
	StatusFailed   Status = "failed"
	StatusRefunded Status = "refunded"
)

// Only the settlement transitions are driven here; refunded is reachable
// through back-office tooling, not this core.
var validNext = map[Status]map[Status]bool{
	StatusPending:  {StatusPaid: true, StatusFailed: true},
	StatusPaid:     {StatusRefunded: true},
	StatusFailed:   {},
	StatusRefunded: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}
