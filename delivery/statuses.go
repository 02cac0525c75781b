package delivery

// Status is the order's delivery state. Two delivery paths exist: galleries
// with a client selection step flow through CLIENT_SELECTING/CLIENT_APPROVED,
// galleries without one start at AWAITING_FINAL_PHOTOS.
type Status string

const (
	StatusDraft               Status = "DRAFT"
	StatusClientSelecting     Status = "CLIENT_SELECTING"
	StatusChangesRequested    Status = "CHANGES_REQUESTED"
	StatusClientApproved      Status = "CLIENT_APPROVED"
	StatusAwaitingFinalPhotos Status = "AWAITING_FINAL_PHOTOS"
	StatusPreparingDelivery   Status = "PREPARING_DELIVERY"
	StatusDelivered           Status = "DELIVERED"
	StatusCancelled           Status = "CANCELLED"
)

var transitions = map[Status][]Status{
	StatusDraft:               {StatusClientSelecting, StatusAwaitingFinalPhotos, StatusCancelled},
	StatusClientSelecting:     {StatusClientApproved, StatusChangesRequested, StatusCancelled},
	StatusChangesRequested:    {StatusClientSelecting, StatusClientApproved, StatusCancelled},
	StatusClientApproved:      {StatusPreparingDelivery, StatusChangesRequested, StatusCancelled},
	StatusAwaitingFinalPhotos: {StatusPreparingDelivery, StatusCancelled},
	StatusPreparingDelivery:   {StatusDelivered, StatusCancelled},
	StatusDelivered:           {},
	StatusCancelled:           {},
}

func IsTerminal(s Status) bool {
	return s == StatusDelivered || s == StatusCancelled
}

func CanTransition(from Status, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
