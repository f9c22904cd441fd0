package core

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitAmount(t *testing.T) {
	cases := []struct {
		total int64
		n     int
		want  string
		err   error
	}{
		{9000, 2, "30.00", nil},
		{10000, 2, "33.33", nil},
		{200, 1, "1.00", nil},
		{5, 1, "0.03", nil}, // 0.025 rounds half up
		{1, 199, "", ErrSplitTooSmall},
		{100, 199, "0.01", nil}, // 0.005 rounds up to the minimum
		{100, 200, "", ErrSplitTooSmall},
		{1, 1, "0.01", nil},
		{100, 0, "", ErrMissingUser},
	}
	for _, tc := range cases {
		got, err := SplitAmount(Money{Cents: tc.total}, tc.n)
		if tc.err != nil {
			assert.ErrorIs(t, err, tc.err)
			assert.ErrorIs(t, err, ErrValidation)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tc.want, got.String())
	}
}

func TestSplitShareIsWithinHalfCent(t *testing.T) {
	for total := int64(1); total < 5000; total += 37 {
		for n := 1; n <= 7; n++ {
			share, err := SplitAmount(Money{Cents: total}, n)
			if err != nil {
				continue
			}
			diff := share.Cents*int64(n+1) - total
			if diff < 0 {
				diff = -diff
			}
			assert.LessOrEqual(t, diff*2, int64(n+1), "total=%d n=%d", total, n)
		}
	}
}

func TestBulkExpandSplit(t *testing.T) {
	req := BulkRequest{
		Amount:         Money{Cents: 9000},
		Type:           Lend,
		Counterparties: []UserID{"b", "c"},
		Description:    "Dinner",
		IsSplit:        true,
	}
	out, err := req.Expand("a", "ETB")
	require.NoError(t, err)
	require.Len(t, out, 2)
	for i, n := range out {
		assert.Equal(t, "30.00", n.Amount.String())
		assert.Equal(t, "Dinner (Split: 30.00 ETB each)", n.Description)
		payer, recipient := n.Parties("a")
		assert.Equal(t, UserID("a"), payer)
		assert.Equal(t, req.Counterparties[i], recipient)
	}
}

func TestBulkExpandFullAmountEach(t *testing.T) {
	req := BulkRequest{
		Amount:         Money{Cents: 4000},
		Type:           Borrow,
		Counterparties: []UserID{"b", "c", "d"},
		Description:    "Tickets",
	}
	out, err := req.Expand("a", "ETB")
	require.NoError(t, err)
	require.Len(t, out, 3)
	for _, n := range out {
		assert.Equal(t, int64(4000), n.Amount.Cents)
		assert.Equal(t, "Tickets", n.Description)
		payer, recipient := n.Parties("a")
		assert.Equal(t, UserID("a"), recipient)
		assert.NotEqual(t, payer, recipient)
	}
}

func TestBulkExpandRejects(t *testing.T) {
	base := BulkRequest{Amount: Money{Cents: 100}, Type: Lend, Counterparties: []UserID{"b"}, Description: "x"}

	bad := []func(*BulkRequest){
		func(r *BulkRequest) { r.Counterparties = nil },
		func(r *BulkRequest) { r.Counterparties = []UserID{"b", "a"} },
		func(r *BulkRequest) { r.Counterparties = []UserID{"b", "b"} },
		func(r *BulkRequest) { r.Description = "  " },
		func(r *BulkRequest) { r.Type = "gift" },
		func(r *BulkRequest) { r.Amount = Money{} },
		func(r *BulkRequest) {
			r.Amount = Money{Cents: 1}
			r.Counterparties = make([]UserID, 199)
			for i := range r.Counterparties {
				r.Counterparties[i] = UserID(fmt.Sprintf("u%d", i))
			}
			r.IsSplit = true
		},
	}
	for i, mutate := range bad {
		r := base
		mutate(&r)
		_, err := r.Expand("a", "ETB")
		assert.ErrorIs(t, err, ErrValidation, "case %d", i)
	}
}
