package payment

import (
	"reflect"
	"regexp"
	"testing"
	"time"
)

func TestPendingMonths(t *testing.T) {
	date := func(y int, m time.Month) time.Time {
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	}
	now := date(2021, time.June).Add(14 * 24 * time.Hour) // mid June 2021

	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		paid  []string
		want  []string
	}{
		{
			name:  "batch fully elapsed, nothing paid",
			start: date(2021, time.January),
			end:   date(2021, time.March),
			want:  []string{"2021-01", "2021-02", "2021-03"},
		},
		{
			name:  "paid months are excluded",
			start: date(2021, time.January),
			end:   date(2021, time.March),
			paid:  []string{"2021-01", "2021-03"},
			want:  []string{"2021-02"},
		},
		{
			name:  "running batch only owes up to the current month",
			start: date(2021, time.April),
			end:   date(2021, time.December),
			paid:  []string{"2021-04"},
			want:  []string{"2021-05", "2021-06"},
		},
		{
			name:  "future batch owes nothing yet",
			start: date(2021, time.September),
			end:   date(2021, time.December),
			want:  []string{},
		},
		{
			name:  "everything paid",
			start: date(2021, time.January),
			end:   date(2021, time.February),
			paid:  []string{"2021-01", "2021-02"},
			want:  []string{},
		},
		{
			name:  "year boundary",
			start: date(2020, time.November),
			end:   date(2021, time.January),
			want:  []string{"2020-11", "2020-12", "2021-01"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paid := make(map[string]bool, len(tt.paid))
			for _, m := range tt.paid {
				paid[m] = true
			}
			if got := pendingMonths(tt.start, tt.end, now, paid); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("pendingMonths() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMakeReceiptNumber(t *testing.T) {
	re := regexp.MustCompile(`^RCP-202105-[0-9A-F]{8}$`)

	rcp := makeReceiptNumber("2021-05")
	if !re.MatchString(rcp) {
		t.Errorf("makeReceiptNumber() = %q, want match for %q", rcp, re)
	}
	if other := makeReceiptNumber("2021-05"); other == rcp {
		t.Errorf("makeReceiptNumber() returned the same value twice: %q", rcp)
	}
}
