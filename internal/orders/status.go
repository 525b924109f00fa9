package orders

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusPacked     Status = "packed"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusReturned   Status = "returned"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentVerifying PaymentStatus = "verifying"
	PaymentPaid      PaymentStatus = "paid"
	PaymentFailed    PaymentStatus = "failed"
)

type ItemStatus string

const (
	ItemOrdered   ItemStatus = "ordered"
	ItemCancelled ItemStatus = "cancelled"
	ItemReturned  ItemStatus = "returned"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed:  {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing: {StatusPacked: true, StatusCancelled: true},
	StatusPacked:     {StatusShipped: true, StatusCancelled: true},
	StatusShipped:    {StatusDelivered: true},
	StatusDelivered:  {StatusReturned: true},
	StatusCancelled:  {},
	StatusReturned:   {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// restocks reports whether moving to s gives the items' stock back, and the
// status the items take.
func restocks(s Status) (ItemStatus, bool) {
	switch s {
	case StatusCancelled:
		return ItemCancelled, true
	case StatusReturned:
		return ItemReturned, true
	}
	return "", false
}
