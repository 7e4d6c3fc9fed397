package paymentsvc

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"strings"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/payment"
)

// midtransProvider drives online payments through the Midtrans Snap gateway.
type midtransProvider struct {
	client    snap.Client
	serverKey string
}

var _ payment.Provider = (*midtransProvider)(nil)

func NewMidtransProvider(conf *core.Config) *midtransProvider {
	env := midtrans.Sandbox
	if !conf.Debug {
		env = midtrans.Production
	}
	var client snap.Client
	client.New(conf.Payment.MidtransServerKey, env)
	return &midtransProvider{
		client:    client,
		serverKey: conf.Payment.MidtransServerKey,
	}
}

// CreateOrder opens a Snap transaction for the payment. Midtrans only deals
// in IDR so the currency is implied by the gateway account.
func (p *midtransProvider) CreateOrder(_ context.Context, orderID string, amount float64, _ string) (payment.Order, error) {
	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  orderID,
			GrossAmt: int64(amount),
		},
	}
	resp, mErr := p.client.CreateTransaction(req)
	if mErr != nil {
		return payment.Order{}, mErr
	}
	return payment.Order{Ref: resp.Token, RedirectURL: resp.RedirectURL}, nil
}

func (p *midtransProvider) VerifyNotification(n payment.Notification) (string, error) {
	if err := verifySignature(n, p.serverKey); err != nil {
		return "", err
	}
	return mapStatus(n.Status), nil
}

// Sign computes a notification signature,
// SHA512(order_id + status_code + gross_amount + serverKey).
func Sign(orderID, statusCode, grossAmount, serverKey string) string {
	h := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(h[:])
}

func verifySignature(n payment.Notification, serverKey string) error {
	want := strings.ToLower(n.Signature)
	if want == "" || Sign(n.OrderID, n.StatusCode, n.GrossAmount, serverKey) != want {
		return payment.ErrInvalidSignature
	}
	return nil
}

// mapStatus translates a gateway transaction status into a payment status.
// Unknown statuses count as pending so an unexpected callback never settles
// a payment.
func mapStatus(status string) string {
	switch strings.ToLower(status) {
	case "capture", "settlement":
		return payment.StatusCompleted
	case "deny", "cancel", "expire", "failure":
		return payment.StatusFailed
	case "refund", "partial_refund":
		return payment.StatusRefunded
	}
	return payment.StatusPending
}
