package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDateJSONRoundTrip(t *testing.T) {
	d, err := ParseDate("2026-03-10")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	raw, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `"2026-03-10"` {
		t.Fatalf("expected quoted date, got %s", raw)
	}

	var back Date
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Equal(d) {
		t.Fatalf("round trip mismatch: %s vs %s", back, d)
	}
}

func TestDateUnmarshalRejectsMalformed(t *testing.T) {
	var d Date
	if err := json.Unmarshal([]byte(`"10/03/2026"`), &d); err == nil {
		t.Fatalf("expected error for malformed date")
	}
	if err := json.Unmarshal([]byte(`20260310`), &d); err == nil {
		t.Fatalf("expected error for non-string date")
	}
}

func TestDateUnmarshalNull(t *testing.T) {
	d, _ := ParseDate("2026-03-10")
	if err := json.Unmarshal([]byte(`null`), &d); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if !d.IsZero() {
		t.Fatalf("expected zero date after null")
	}
}

func TestDateOfDropsTimeComponent(t *testing.T) {
	stamp := time.Date(2026, 3, 10, 23, 45, 12, 999, time.UTC)
	d := DateOf(stamp)
	if d.String() != "2026-03-10" {
		t.Fatalf("expected 2026-03-10, got %s", d)
	}
	if !d.Time().Equal(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected midnight UTC, got %v", d.Time())
	}
}

func TestPaymentMethodSets(t *testing.T) {
	for _, m := range []string{PaymentCash, PaymentCard, PaymentTransfer, PaymentMixed} {
		if !ValidPaymentMethod(m) {
			t.Fatalf("expected %s to be valid", m)
		}
	}
	if ValidPaymentMethod("check") {
		t.Fatalf("expected check to be invalid")
	}

	if !IsCashPayment(PaymentCash) || !IsCashPayment(PaymentMixed) {
		t.Fatalf("cash and mixed must count as cash payments")
	}
	if IsCashPayment(PaymentCard) || IsCashPayment(PaymentTransfer) {
		t.Fatalf("card and transfer must not count as cash payments")
	}
}
