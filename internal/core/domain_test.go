package core

import (
	"errors"
	"testing"
	"time"
)

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
}

func TestNewTransactionValidate(t *testing.T) {
	good := NewTransaction{Amount: Money{Cents: 100}, Type: Lend, OtherUserID: "b", Description: "ok"}
	if err := good.Validate("a"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*NewTransaction)
		want   error
	}{
		{"zero amount", func(n *NewTransaction) { n.Amount = Money{} }, ErrInvalidAmount},
		{"bad type", func(n *NewTransaction) { n.Type = "gift" }, ErrInvalidType},
		{"no counterparty", func(n *NewTransaction) { n.OtherUserID = " " }, ErrMissingUser},
		{"self", func(n *NewTransaction) { n.OtherUserID = "a" }, ErrSelfTransaction},
		{"blank description", func(n *NewTransaction) { n.Description = "\t" }, ErrEmptyDescription},
	}
	for _, tc := range cases {
		n := good
		tc.mutate(&n)
		err := n.Validate("a")
		if !errors.Is(err, tc.want) || !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestParties(t *testing.T) {
	lend := NewTransaction{Type: Lend, OtherUserID: "b"}
	if p, r := lend.Parties("a"); p != "a" || r != "b" {
		t.Fatalf("lend: payer=%s recipient=%s", p, r)
	}
	borrow := NewTransaction{Type: Borrow, OtherUserID: "b"}
	if p, r := borrow.Parties("a"); p != "b" || r != "a" {
		t.Fatalf("borrow: payer=%s recipient=%s", p, r)
	}
}

func TestApplyKeepsPartiesAndAuthorize(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	stored := Transaction{ID: "1", Amount: Money{Cents: 100}, PayerID: "a", RecipientID: "b", Description: "x", CreatedAt: created}

	if err := stored.Authorize("a"); err != nil {
		t.Fatalf("payer should be allowed, got %v", err)
	}
	if err := stored.Authorize("b"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("recipient should be refused, got %v", err)
	}

	amended := created.Add(time.Hour)
	patched := stored.Apply(TransactionPatch{Amount: Money{Cents: 250}, Description: " y ", IsPayment: true, UpdatedAt: amended})
	if patched.PayerID != "a" || patched.RecipientID != "b" || !patched.CreatedAt.Equal(created) {
		t.Fatalf("immutable fields changed: %+v", patched)
	}
	if patched.Amount.Cents != 250 || patched.Description != "y" || !patched.IsPayment || !patched.UpdatedAt.Equal(amended) {
		t.Fatalf("patch not applied: %+v", patched)
	}
}

func TestDateParsing(t *testing.T) {
	d, err := ParseDate("2026-02-28")
	if err != nil || d.String() != "2026-02-28" || d.MonthKey() != "2026-02" {
		t.Fatalf("ParseDate: %v %v", d, err)
	}
	if _, err := ParseDate("28/02/2026"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := d.AddDays(1).String(); got != "2026-03-01" {
		t.Fatalf("AddDays crossed month wrong: %s", got)
	}
	if n := NewDate(2026, 1, 1).DaysUntil(NewDate(2026, 12, 31)); n != 364 {
		t.Fatalf("DaysUntil = %d", n)
	}

	// 23:30 UTC on the 1st is already the 2nd in Addis Ababa.
	loc, err := time.LoadLocation("Africa/Addis_Ababa")
	if err != nil {
		t.Skipf("no tzdata: %v", err)
	}
	at := time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC)
	if got := DateOf(at, loc).String(); got != "2026-03-02" {
		t.Fatalf("DateOf = %s", got)
	}
}
