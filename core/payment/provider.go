package payment

import "context"

type (
	// Order is a payment order registered with the gateway.
	Order struct {
		Ref         string
		RedirectURL string
	}

	// Notification is a gateway callback about an order's outcome.
	// Field names follow the midtrans notification payload.
	Notification struct {
		OrderID     string `json:"order_id"`
		PaymentRef  string `json:"transaction_id"`
		Status      string `json:"transaction_status"`
		StatusCode  string `json:"status_code"`
		GrossAmount string `json:"gross_amount"`
		Signature   string `json:"signature_key"`
	}

	// Provider abstracts the online payment gateway. Implementations register
	// orders for checkout and authenticate incoming notifications, mapping the
	// gateway's vocabulary to this package's payment statuses.
	Provider interface {
		CreateOrder(ctx context.Context, orderID string, amount float64, currency string) (Order, error)
		// VerifyNotification authenticates n and returns the resulting payment
		// status: StatusCompleted, StatusFailed or StatusPending.
		// It returns ErrInvalidSignature when n fails authentication.
		VerifyNotification(n Notification) (string, error)
	}
)
