package stdlib

import (
	"math"

	"github.com/chazu/to2/binding"
)

// Bucket summarizes a series of samples. Buckets are values: add returns
// a new bucket and never changes the receiver.
type Bucket struct {
	count int
	min   float64
	max   float64
	sum   float64
}

// Add returns b with value included.
func (b Bucket) Add(value float64) Bucket {
	if b.count == 0 {
		return Bucket{count: 1, min: value, max: value, sum: value}
	}
	return Bucket{
		count: b.count + 1,
		min:   math.Min(b.min, value),
		max:   math.Max(b.max, value),
		sum:   b.sum + value,
	}
}

func (b Bucket) Count() int   { return b.count }
func (b Bucket) Min() float64 { return b.min }
func (b Bucket) Max() float64 { return b.max }
func (b Bucket) Mean() float64 {
	if b.count == 0 {
		return 0
	}
	return b.sum / float64(b.count)
}

// Stats binds sample aggregation.
var Stats = &binding.Module{
	Name:        "core::stats",
	Description: "Sample statistics",
	Types: []binding.Type{
		{
			Name:        "Bucket",
			Description: "Count, extremes and mean of a series of samples",
			Zero:        Bucket{},
			Fields: []binding.Field{
				{Name: "count", Description: "Number of samples", Get: Bucket.Count},
				{Name: "min", Description: "Smallest sample, 0.0 when empty", Get: Bucket.Min},
				{Name: "max", Description: "Largest sample, 0.0 when empty", Get: Bucket.Max},
				{Name: "mean", Description: "Average of the samples, 0.0 when empty", Get: Bucket.Mean},
			},
			Methods: []binding.Method{
				{Name: "add", Description: "A bucket that also includes value", Fn: Bucket.Add, Params: []binding.Param{{Name: "value"}}},
			},
		},
	},
	Funcs: []binding.Func{
		{Name: "bucket", Description: "An empty bucket", Fn: func() Bucket { return Bucket{} }},
	},
}
