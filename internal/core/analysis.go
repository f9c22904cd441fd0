package core

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"

	// MaxPeriodDays bounds the analysis window.
	MaxPeriodDays = 366
	DefaultRange  = "30d"
)

var rangeDays = map[string]int{"7d": 7, "30d": 30, "90d": 90}

type (
	Trend string

	// Period is an inclusive range of calendar days in a reference zone.
	// Month is display context only and does not filter.
	Period struct {
		Start    Date
		End      Date
		Month    Date
		Location *time.Location
	}

	DailyAmount struct {
		Date   Date
		Amount Money
	}

	Series []DailyAmount

	// Average is a mean amount; it keeps full precision and renders with two
	// decimals.
	Average decimal.Decimal

	MonthlyAverage struct {
		Month        string
		AvgExpense   Average
		AvgLending   Average
		AvgBorrowing Average
	}

	Summary struct {
		TotalExpenses  Money
		TotalLending   Money
		TotalBorrowing Money
		NetBalance     Money
	}

	Analysis struct {
		Period          Period
		Expenses        Series
		Lending         Series
		Borrowing       Series
		MonthlyAverages []MonthlyAverage
		Summary         Summary
	}
)

// ResolvePeriod builds a period from request parameters. Explicit start and
// end win over the named range; an empty range means the last 30 days.
func ResolvePeriod(today Date, rangeKey, start, end, month string, loc *time.Location) (Period, error) {
	if loc == nil {
		loc = time.UTC
	}
	p := Period{End: today, Location: loc, Month: NewDate(today.Year(), int(today.Month()), 1)}

	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	if start != "" && end != "" {
		s, err := ParseDate(start)
		if err != nil {
			return Period{}, err
		}
		e, err := ParseDate(end)
		if err != nil {
			return Period{}, err
		}
		p.Start, p.End = s, e
	} else {
		key := strings.TrimSpace(rangeKey)
		if key == "" {
			key = DefaultRange
		}
		days, ok := rangeDays[key]
		if !ok {
			return Period{}, fmt.Errorf("%w: unknown range %q", ErrValidation, key)
		}
		p.Start = today.AddDays(-days)
	}

	if m := strings.TrimSpace(month); m != "" {
		md, err := ParseMonth(m)
		if err != nil {
			return Period{}, err
		}
		p.Month = md
	}
	return p, p.Validate()
}

func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return fmt.Errorf("%w: period bounds are required", ErrValidation)
	}
	if p.End.Before(p.Start.Time) {
		return fmt.Errorf("%w: end date %s is before start date %s", ErrValidation, p.End, p.Start)
	}
	if p.Days() > MaxPeriodDays {
		return fmt.Errorf("%w: period longer than %d days", ErrValidation, MaxPeriodDays)
	}
	return nil
}

// Days is the number of calendar days covered, both ends included.
func (p Period) Days() int {
	return p.Start.DaysUntil(p.End) + 1
}

// Window returns the instants bounding the period, both inclusive.
func (p Period) Window() (from, to time.Time) {
	loc := p.location()
	return p.Start.Start(loc), p.End.End(loc)
}

func (p Period) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

// Analyze folds the viewer's transactions into daily series, monthly
// averages and period totals. Transactions outside the period or not
// involving the viewer are ignored.
func Analyze(viewer UserID, txs []Transaction, p Period) Analysis {
	loc := p.location()
	daily := map[Bucket]map[string]Money{
		BucketExpenses:  {},
		BucketLending:   {},
		BucketBorrowing: {},
	}
	type monthAcc struct {
		sum   map[Bucket]Money
		count map[Bucket]int64
	}
	months := map[string]*monthAcc{}

	var sum Summary
	for _, tx := range txs {
		c := Classify(tx, viewer)
		if !c.Involved {
			continue
		}
		day := DateOf(tx.CreatedAt, loc)
		if day.Before(p.Start.Time) || day.After(p.End.Time) {
			continue
		}

		key := day.MonthKey()
		acc, ok := months[key]
		if !ok {
			acc = &monthAcc{sum: map[Bucket]Money{}, count: map[Bucket]int64{}}
			months[key] = acc
		}

		if c.Bucket == BucketNone {
			continue
		}
		daily[c.Bucket][day.String()] = daily[c.Bucket][day.String()].Add(tx.Amount)
		acc.sum[c.Bucket] = acc.sum[c.Bucket].Add(tx.Amount)
		acc.count[c.Bucket]++

		switch c.Bucket {
		case BucketExpenses:
			sum.TotalExpenses = sum.TotalExpenses.Add(tx.Amount)
		case BucketLending:
			sum.TotalLending = sum.TotalLending.Add(tx.Amount)
		case BucketBorrowing:
			sum.TotalBorrowing = sum.TotalBorrowing.Add(tx.Amount)
		}
	}
	sum.NetBalance = sum.TotalLending.Sub(sum.TotalBorrowing)

	a := Analysis{
		Period:    p,
		Expenses:  fillDays(daily[BucketExpenses], p),
		Lending:   fillDays(daily[BucketLending], p),
		Borrowing: fillDays(daily[BucketBorrowing], p),
		Summary:   sum,
	}

	for key, acc := range months {
		a.MonthlyAverages = append(a.MonthlyAverages, MonthlyAverage{
			Month:        key,
			AvgExpense:   mean(acc.sum[BucketExpenses], acc.count[BucketExpenses]),
			AvgLending:   mean(acc.sum[BucketLending], acc.count[BucketLending]),
			AvgBorrowing: mean(acc.sum[BucketBorrowing], acc.count[BucketBorrowing]),
		})
	}
	sort.Slice(a.MonthlyAverages, func(i, j int) bool {
		return a.MonthlyAverages[i].Month < a.MonthlyAverages[j].Month
	})
	return a
}

// fillDays produces one entry per day of the period, zero where nothing
// happened.
func fillDays(byDay map[string]Money, p Period) Series {
	n := p.Days()
	if n <= 0 {
		return Series{}
	}
	out := make(Series, 0, n)
	for d := p.Start; !d.After(p.End.Time); d = d.AddDays(1) {
		out = append(out, DailyAmount{Date: d, Amount: byDay[d.String()]})
	}
	return out
}

func mean(total Money, n int64) Average {
	if n == 0 {
		return Average(decimal.Zero)
	}
	return Average(total.Decimal().Div(decimal.NewFromInt(n)))
}

// Trend compares the first and last day of the series: increasing when the
// first value is greater, decreasing otherwise. Series with fewer than two
// points have no trend.
func (s Series) Trend() (Trend, bool) {
	if len(s) < 2 {
		return "", false
	}
	if s[0].Amount.Cents > s[len(s)-1].Amount.Cents {
		return TrendIncreasing, true
	}
	return TrendDecreasing, true
}

// Total sums the series.
func (s Series) Total() Money {
	var t Money
	for _, d := range s {
		t = t.Add(d.Amount)
	}
	return t
}

func (a Average) Decimal() decimal.Decimal { return decimal.Decimal(a) }

func (a Average) String() string { return decimal.Decimal(a).StringFixed(2) }

func (a Average) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}
