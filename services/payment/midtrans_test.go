package paymentsvc

import (
	"testing"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/payment"
)

func TestVerifyNotification(t *testing.T) {
	conf := &core.Config{}
	conf.Payment.MidtransServerKey = "SB-server-key"
	provider := NewDummyProvider(conf)

	n := payment.Notification{
		OrderID:     "order-1",
		StatusCode:  "200",
		GrossAmount: "5000.00",
		Status:      "settlement",
	}
	n.Signature = Sign(n.OrderID, n.StatusCode, n.GrossAmount, "SB-server-key")

	status, err := provider.VerifyNotification(n)
	if err != nil {
		t.Fatalf("VerifyNotification() failed: %v", err)
	}
	if status != payment.StatusCompleted {
		t.Errorf("status = %q; want %q", status, payment.StatusCompleted)
	}

	// a tampered amount invalidates the signature
	n.GrossAmount = "1.00"
	if _, err = provider.VerifyNotification(n); err != payment.ErrInvalidSignature {
		t.Errorf("err = %v; want %v", err, payment.ErrInvalidSignature)
	}

	n.Signature = ""
	if _, err = provider.VerifyNotification(n); err != payment.ErrInvalidSignature {
		t.Errorf("err = %v; want %v", err, payment.ErrInvalidSignature)
	}
}

func TestMapStatus(t *testing.T) {
	tests := []struct {
		gatewayStatus string
		want          string
	}{
		{"settlement", payment.StatusCompleted},
		{"capture", payment.StatusCompleted},
		{"Settlement", payment.StatusCompleted},
		{"deny", payment.StatusFailed},
		{"cancel", payment.StatusFailed},
		{"expire", payment.StatusFailed},
		{"failure", payment.StatusFailed},
		{"refund", payment.StatusRefunded},
		{"partial_refund", payment.StatusRefunded},
		{"pending", payment.StatusPending},
		{"whatever", payment.StatusPending},
	}
	for _, tt := range tests {
		t.Run(tt.gatewayStatus, func(t *testing.T) {
			if got := mapStatus(tt.gatewayStatus); got != tt.want {
				t.Errorf("mapStatus(%q) = %q; want %q", tt.gatewayStatus, got, tt.want)
			}
		})
	}
}
