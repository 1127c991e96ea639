package storefront

// Order is the shop's view of a sale. The reference is the token buyers
// paste into /confirm_purchase; operators cross-check it before
// validating.
type Order struct {
	ID        string            `json:"id"`
	Reference string            `json:"reference"`
	Status    string            `json:"status"`
	Amount    string            `json:"amount"`
	Currency  string            `json:"currency"`
	PaidAt    string            `json:"paid_at,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Webhook structures

type WebhookNotification struct {
	Type   string `json:"type"`
	Event  string `json:"event"`
	Object Order  `json:"object"`
}

const EventOrderPaid = "order.paid"
