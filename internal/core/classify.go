package core

// Bucket names the analysis series a transaction feeds.
type Bucket int

const (
	BucketNone Bucket = iota
	BucketExpenses
	BucketLending
	BucketBorrowing
)

func (b Bucket) String() string {
	switch b {
	case BucketExpenses:
		return "expenses"
	case BucketLending:
		return "lending"
	case BucketBorrowing:
		return "borrowing"
	default:
		return "none"
	}
}

// Classification is a transaction seen from one participant.
type Classification struct {
	Involved     bool
	Counterparty UserID
	// Signed is the change in the viewer's net position toward the
	// counterparty: positive means the counterparty owes the viewer more.
	Signed Money
	Bucket Bucket
}

// Classify is the single rule shared by balances and analysis.
//
// From the payer's side an ordinary record adds the amount and a payment
// subtracts it; the recipient sees the negation.
func Classify(tx Transaction, viewer UserID) Classification {
	var c Classification
	switch viewer {
	case tx.PayerID:
		c.Involved = true
		c.Counterparty = tx.RecipientID
		c.Signed = tx.Amount
		if tx.IsPayment {
			c.Signed = tx.Amount.Neg()
		}
	case tx.RecipientID:
		c.Involved = true
		c.Counterparty = tx.PayerID
		c.Signed = tx.Amount.Neg()
		if tx.IsPayment {
			c.Signed = tx.Amount
		}
	default:
		return c
	}
	c.Bucket = bucketFor(tx.IsPayment, viewer == tx.PayerID)
	return c
}

// bucketFor maps role and payment flag to a series. Ordinary records where
// the viewer is the payer feed no series.
func bucketFor(isPayment, isPayer bool) Bucket {
	switch {
	case isPayment && isPayer:
		return BucketLending
	case isPayment:
		return BucketBorrowing
	case !isPayer:
		return BucketExpenses
	default:
		return BucketNone
	}
}
