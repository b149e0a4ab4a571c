package orders

import "time"

type Product struct {
	ID          string
	SKU         string
	Name        string
	Description string
	PriceCents  int
	Stock       int
	Reserved    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Available is what checkout may still reserve. Never negative as long as
// every write goes through the guarded updates in StockRepo.
func (p Product) Available() int { return p.Stock - p.Reserved }

type Order struct {
	ID                string
	UserID            string
	Lines             []OrderLine
	TotalCents        int
	Currency          string
	Status            Status
	CheckoutSessionID string
	PaymentIntentID   string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// OrderLine freezes the unit price at checkout time.
type OrderLine struct {
	ProductID  string
	Qty        int
	PriceCents int
}

type ItemInput struct {
	ProductID string `json:"id"`
	Qty       int    `json:"quantity"`
}

func TotalCents(lines []OrderLine) int {
	total := 0
	for _, l := range lines {
		total += l.PriceCents * l.Qty
	}
	return total
}
