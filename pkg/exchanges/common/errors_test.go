package common

import (
	"errors"
	"testing"
)

func TestTransientWrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Transient("get depth", cause)

	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected ErrTransient in chain, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected original cause in chain, got %v", err)
	}
	if err.Error() != "get depth: connection reset" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if Transient("noop", nil) != nil {
		t.Fatal("Transient(nil) must be nil")
	}
}

func TestDepthBestLevels(t *testing.T) {
	d := Depth{
		Bids: []PriceLevel{{Price: 99, Qty: 1}, {Price: 98, Qty: 2}},
		Asks: []PriceLevel{{Price: 101, Qty: 1}},
	}
	if d.BestBid() != 99 || d.BestAsk() != 101 {
		t.Fatalf("best levels = %v/%v", d.BestBid(), d.BestAsk())
	}
	if (Depth{}).BestBid() != 0 || (Depth{}).BestAsk() != 0 {
		t.Fatal("empty depth must report zero best levels")
	}
	if SideBuy.Opposite() != SideSell || SideSell.Opposite() != SideBuy {
		t.Fatal("Opposite mismatch")
	}
}
