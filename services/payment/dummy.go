package paymentsvc

import (
	"context"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/payment"
)

// dummyProvider fakes a gateway for development and tests. Orders always
// succeed and notifications are verified with the same signature scheme as
// the real gateway.
type dummyProvider struct {
	serverKey string
}

var _ payment.Provider = (*dummyProvider)(nil)

func NewDummyProvider(conf *core.Config) *dummyProvider {
	return &dummyProvider{serverKey: conf.Payment.MidtransServerKey}
}

func (p *dummyProvider) CreateOrder(_ context.Context, orderID string, _ float64, _ string) (payment.Order, error) {
	return payment.Order{
		Ref:         "dummy-" + orderID,
		RedirectURL: "https://pay.example.com/" + orderID,
	}, nil
}

func (p *dummyProvider) VerifyNotification(n payment.Notification) (string, error) {
	if err := verifySignature(n, p.serverKey); err != nil {
		return "", err
	}
	return mapStatus(n.Status), nil
}
