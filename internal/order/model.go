package order

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return Status(s), true
	}
	return "", false
}

// transitions is the closed graph of allowed status moves. delivered
// and cancelled are terminal.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Item is a line item. UnitPrice is the price snapshot taken at order
// time; it never changes when the catalog price does. ProductName and
// ProductImage are display detail and stay nil when the referenced
// product has since been deleted.
type Item struct {
	ProductID    string  `json:"product"`
	Quantity     int     `json:"quantity"`
	UnitPrice    float64 `json:"price"`
	ProductName  *string `json:"productName,omitempty"`
	ProductImage *string `json:"productImage,omitempty"`
}

type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Order struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	User      *UserRef  `json:"user,omitempty"`
	Items     []Item    `json:"items"`
	Total     float64   `json:"total"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
