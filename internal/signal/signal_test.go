package signal

import (
	"strings"
	"testing"
)

func TestValidate_BuyPriceOrdering(t *testing.T) {
	sig := New("AAPL", DirectionBuy, 0.65)
	sig.EntryPrice = 100
	sig.StopLoss = 95
	sig.TakeProfit = 110

	if err := sig.Validate(); err != nil {
		t.Fatalf("expected valid buy signal, got %v", err)
	}

	sig.StopLoss = 105
	if err := sig.Validate(); err == nil {
		t.Fatalf("expected error when stop above entry for buy signal")
	}
}

func TestValidate_SellPriceOrdering(t *testing.T) {
	sig := New("AAPL", DirectionStrongSell, 0.25)
	sig.EntryPrice = 100
	sig.StopLoss = 105
	sig.TakeProfit = 90

	if err := sig.Validate(); err != nil {
		t.Fatalf("expected valid sell signal, got %v", err)
	}

	sig.TakeProfit = 102
	if err := sig.Validate(); err == nil {
		t.Fatalf("expected error when take profit above entry for sell signal")
	}
}

func TestValidate_RejectsNonPositivePrices(t *testing.T) {
	sig := New("AAPL", DirectionBuy, 0.65)
	sig.EntryPrice = 100
	sig.StopLoss = 0
	sig.TakeProfit = 110

	if err := sig.Validate(); err == nil {
		t.Fatalf("expected error for zero stop loss")
	}
}

func TestNew_ClampsConfidence(t *testing.T) {
	if got := New("AAPL", DirectionBuy, 1.4).Confidence; got != 1 {
		t.Errorf("expected confidence clamped to 1, got %f", got)
	}
	if got := New("AAPL", DirectionSell, -0.2).Confidence; got != 0 {
		t.Errorf("expected confidence clamped to 0, got %f", got)
	}
}

func TestWithReason_Appends(t *testing.T) {
	sig := New("AAPL", DirectionBuy, 0.65).
		WithReason("RSI %.1f", 65.0).
		WithReason("突破%d日新高", 20)

	if len(sig.Reasons) != 2 {
		t.Fatalf("expected 2 reasons, got %d", len(sig.Reasons))
	}
	if !strings.Contains(sig.Reasons[0], "65.0") {
		t.Errorf("expected formatted reason, got %q", sig.Reasons[0])
	}
}

func TestDirection_Families(t *testing.T) {
	if !DirectionStrongBuy.IsBuy() || !DirectionBuy.IsBuy() {
		t.Errorf("expected strong_buy and buy in buy family")
	}
	if !DirectionStrongSell.IsSell() || !DirectionSell.IsSell() {
		t.Errorf("expected strong_sell and sell in sell family")
	}
	if DirectionBuy.IsSell() || DirectionSell.IsBuy() {
		t.Errorf("direction families must be disjoint")
	}
}
