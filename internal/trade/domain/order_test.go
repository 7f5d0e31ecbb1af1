package domain

import "testing"

func TestNewOrderTotalFee(t *testing.T) {
	details := []OrderDetail{
		{ItemID: "i1", Price: 1000, Num: 2},
		{ItemID: "i2", Price: 2000, Num: 1},
	}
	o := NewOrder("o1", "u1", 1, details)
	if o.TotalFee != 4000 {
		t.Fatalf("total fee = %d, want 4000", o.TotalFee)
	}
	if o.Status != StatusCreated {
		t.Fatalf("status = %d, want CREATED", o.Status)
	}
}

func TestTerminalStatuses(t *testing.T) {
	if StatusCreated.Terminal() {
		t.Fatal("CREATED must not be terminal")
	}
	if !StatusPaid.Terminal() || !StatusClosed.Terminal() {
		t.Fatal("PAID and CLOSED must be terminal")
	}
}
