package mtf

import "github.com/shopspring/decimal"

// Bucket is a named inclusive leverage range.
type Bucket struct {
	Name string
	Min  decimal.Decimal
	Max  decimal.Decimal
}

// Contains reports whether leverage lies in [Min, Max].
func (b Bucket) Contains(leverage decimal.Decimal) bool {
	return leverage.GreaterThanOrEqual(b.Min) && leverage.LessThanOrEqual(b.Max)
}

// Label is a human-readable form such as "2-3x".
func (b Bucket) Label() string {
	return b.Min.String() + "-" + b.Max.String() + "x"
}

// DefaultBuckets are the two exported ranges. They share the boundary 3, so a record
// with leverage exactly 3 is exported in both files.
var DefaultBuckets = []Bucket{
	{Name: "leverage_2_to_3", Min: decimal.NewFromInt(2), Max: decimal.NewFromInt(3)},
	{Name: "leverage_3_to_4", Min: decimal.NewFromInt(3), Max: decimal.NewFromInt(4)},
}

// Partition returns one slice per bucket, each in input order. A record lands in every
// bucket that contains its leverage.
func Partition(records []Record, buckets []Bucket) [][]Record {
	out := make([][]Record, len(buckets))
	for _, rec := range records {
		for i, b := range buckets {
			if b.Contains(rec.Leverage) {
				out[i] = append(out[i], rec)
			}
		}
	}
	return out
}

// PartitionByLeverage splits records into the [2,3] and [3,4] buckets.
func PartitionByLeverage(records []Record) (twoToThree, threeToFour []Record) {
	parts := Partition(records, DefaultBuckets)
	return parts[0], parts[1]
}
