// Package curve provides the sampling curves used to reshape normalized
// terrain heights.
package curve

import "sort"

// Curve maps a normalized input onto an output value.
type Curve interface {
	Evaluate(t float64) float64
}

// Key is a single control point of a Keyframes curve.
type Key struct {
	T float64 `json:"t" yaml:"t"`
	V float64 `json:"v" yaml:"v"`
}

// Keyframes is an immutable control-point table sampled by piecewise linear
// interpolation. Inputs outside the table clamp to the first or last key.
type Keyframes struct {
	keys []Key
}

var _ Curve = (*Keyframes)(nil)

// New builds a curve from the supplied keys. The keys are copied and sorted
// by T; when two keys share a T the one given last wins.
func New(keys ...Key) *Keyframes {
	sorted := make([]Key, 0, len(keys))
	for _, k := range keys {
		replaced := false
		for i := range sorted {
			if sorted[i].T == k.T {
				sorted[i] = k
				replaced = true
				break
			}
		}
		if !replaced {
			sorted = append(sorted, k)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].T < sorted[j].T })
	return &Keyframes{keys: sorted}
}

// Linear returns the identity curve over [0,1].
func Linear() *Keyframes {
	return New(Key{T: 0, V: 0}, Key{T: 1, V: 1})
}

// Constant returns a curve that evaluates to v everywhere.
func Constant(v float64) *Keyframes {
	return New(Key{T: 0, V: v})
}

// Keys returns a copy of the control points.
func (c *Keyframes) Keys() []Key {
	if c == nil {
		return nil
	}
	return append([]Key(nil), c.keys...)
}

// Evaluate samples the curve at t. An empty curve is the identity.
func (c *Keyframes) Evaluate(t float64) float64 {
	if c == nil || len(c.keys) == 0 {
		return t
	}
	keys := c.keys
	if t <= keys[0].T {
		return keys[0].V
	}
	last := keys[len(keys)-1]
	if t >= last.T {
		return last.V
	}
	// first key strictly greater than t
	idx := sort.Search(len(keys), func(i int) bool { return keys[i].T > t })
	a := keys[idx-1]
	b := keys[idx]
	span := b.T - a.T
	if span <= 0 {
		return b.V
	}
	return a.V + (t-a.T)/span*(b.V-a.V)
}
