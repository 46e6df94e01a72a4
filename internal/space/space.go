package space

import (
	"fmt"
	"iter"
	"math"
)

// Dims is the number of axes in a parameter space.
const Dims = 4

// Range is an inclusive integer interval.
type Range struct {
	Min int
	Max int
}

// Len returns the number of integers in the range. A range wider than
// math.MaxInt reports math.MaxInt; New rejects such ranges.
func (r Range) Len() int {
	if r.Max < r.Min {
		return 0
	}
	span := r.span()
	if span >= math.MaxInt {
		return math.MaxInt
	}
	return int(span) + 1
}

// span is Max-Min computed without overflow. Callers ensure Max >= Min.
func (r Range) span() uint64 {
	return uint64(r.Max) - uint64(r.Min)
}

// Representable reports whether Len counts the range exactly.
func (r Range) Representable() bool {
	return r.Max < r.Min || r.span() < math.MaxInt
}

// Contains reports whether v lies within the range.
func (r Range) Contains(v int) bool {
	return v >= r.Min && v <= r.Max
}

// Axis is a named bounded integer dimension.
type Axis struct {
	Name  string
	Range Range
}

// Point is one tuple (p0, p1, p2, p3) of the space.
type Point [Dims]int

// Space describes the bounds of each of the four axes.
type Space struct {
	axes [Dims]Axis
}

// New creates a space from four axes. Every axis must be non-empty and
// the total point count must fit in an int64.
func New(axes [Dims]Axis) (*Space, error) {
	size := int64(1)
	for i, a := range axes {
		if a.Range.Min > a.Range.Max {
			return nil, fmt.Errorf("axis %d (%s): min %d exceeds max %d", i, a.Name, a.Range.Min, a.Range.Max)
		}
		if !a.Range.Representable() {
			return nil, fmt.Errorf("axis %d (%s): range [%d, %d] is too wide", i, a.Name, a.Range.Min, a.Range.Max)
		}
		n := int64(a.Range.Len())
		if size > math.MaxInt64/n {
			return nil, fmt.Errorf("axis %d (%s): space has more than %d points", i, a.Name, int64(math.MaxInt64))
		}
		size *= n
		if a.Name == "" {
			axes[i].Name = fmt.Sprintf("p%d", i)
		}
	}
	return &Space{axes: axes}, nil
}

// Axis returns the i-th axis.
func (s *Space) Axis(i int) Axis {
	return s.axes[i]
}

// Axes returns a copy of all axes.
func (s *Space) Axes() [Dims]Axis {
	return s.axes
}

// Size returns the number of points in the space.
func (s *Space) Size() int64 {
	size := int64(1)
	for _, a := range s.axes {
		size *= int64(a.Range.Len())
	}
	return size
}

// ShardCount returns how many shards Shards(outer) yields.
func (s *Space) ShardCount(outer int) int {
	if outer < 0 || outer >= Dims {
		return 0
	}
	return s.axes[outer].Range.Len()
}

// Shards lazily yields one shard per value of the outer axis. Each shard
// pins the outer axis to that value and keeps the full ranges of the
// other three, so the shards are disjoint and cover the space exactly.
func (s *Space) Shards(outer int) iter.Seq[Shard] {
	return func(yield func(Shard) bool) {
		if outer < 0 || outer >= Dims {
			return
		}
		r := s.axes[outer].Range
		for i := range r.Len() {
			v := r.Min + i
			sh := Shard{Index: i, Outer: outer}
			for d := range Dims {
				sh.Ranges[d] = s.axes[d].Range
			}
			sh.Ranges[outer] = Range{Min: v, Max: v}
			if !yield(sh) {
				return
			}
		}
	}
}

// Shard is an independent slice of the space with the outer axis fixed.
type Shard struct {
	Index  int
	Outer  int
	Ranges [Dims]Range
}

// Value returns the fixed value of the shard's outer axis.
func (sh Shard) Value() int {
	return sh.Ranges[sh.Outer].Min
}

// Size returns the number of points in the shard.
func (sh Shard) Size() int64 {
	size := int64(1)
	for _, r := range sh.Ranges {
		size *= int64(r.Len())
	}
	return size
}

// Contains reports whether p belongs to the shard.
func (sh Shard) Contains(p Point) bool {
	for d, r := range sh.Ranges {
		if !r.Contains(p[d]) {
			return false
		}
	}
	return true
}

// Points yields every point of the shard in nested ascending order
// (p0 slowest, p3 fastest). Loops count offsets from Min so a range ending
// at math.MaxInt terminates.
func (sh Shard) Points() iter.Seq[Point] {
	return func(yield func(Point) bool) {
		r := sh.Ranges
		var p Point
		for i0 := range r[0].Len() {
			p[0] = r[0].Min + i0
			for i1 := range r[1].Len() {
				p[1] = r[1].Min + i1
				for i2 := range r[2].Len() {
					p[2] = r[2].Min + i2
					for i3 := range r[3].Len() {
						p[3] = r[3].Min + i3
						if !yield(p) {
							return
						}
					}
				}
			}
		}
	}
}
