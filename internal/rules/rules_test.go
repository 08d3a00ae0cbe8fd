package rules

import (
	"testing"

	"github.com/mlrf/mlrf-suggest/internal/domain"
)

func TestSubstringEngineFirstMatchWins(t *testing.T) {
	engine := NewSubstringEngine([]Rule{
		{Label: "A", Substrings: []string{"coffee"}},
		{Label: "B", Substrings: []string{"starbucks"}},
	})
	label, ok := engine.Apply("Starbucks Coffee #123", "", 4.50)
	if !ok || label != "A" {
		t.Errorf("Apply() = (%q, %v), want (A, true) since rule A matches first", label, ok)
	}
}

func TestSubstringEngineNoMatch(t *testing.T) {
	engine := NewSubstringEngine(DefaultRules())
	label, ok := engine.Apply("Unrecognized Vendor Co", "misc charge", 12.0)
	if ok {
		t.Errorf("Apply() = (%q, true), want no match", label)
	}
}

func TestDefaultRulesCoverCommonMerchants(t *testing.T) {
	engine := NewSubstringEngine(DefaultRules())
	cases := []struct {
		merchant string
		want     string
	}{
		{"Whole Foods Market", "Groceries"},
		{"Netflix.com", "Subscriptions"},
		{"Uber Trip", "Transport"},
		{"Amazon.com", "Shopping"},
	}
	for _, tc := range cases {
		label, ok := engine.Apply(tc.merchant, "", 0)
		if !ok || label != tc.want {
			t.Errorf("Apply(%q) = (%q, %v), want (%q, true)", tc.merchant, label, ok, tc.want)
		}
	}
}

func TestApplyTransaction(t *testing.T) {
	engine := NewSubstringEngine(DefaultRules())
	txn := domain.Transaction{Merchant: "Trader Joe's", Description: "", Amount: 30}
	label, ok := ApplyTransaction(engine, txn)
	if !ok || label != "Groceries" {
		t.Errorf("ApplyTransaction() = (%q, %v), want (Groceries, true)", label, ok)
	}
}
