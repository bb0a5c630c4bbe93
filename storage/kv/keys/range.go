package keys

import (
	"bytes"
)

// All returns a new key range matching all keys
func All() Range {
	return Range{}
}

// Range represents all keys such that
//   k >= Min and k < Max
// If Min = nil that indicates the start of all keys
// If Max = nil that indicates the end of all keys
// If multiple modifiers are called on a range the end
// result is effectively the same as ANDing all the
// restrictions.
type Range struct {
	Min []byte
	Max []byte
	ns  []byte
}

// Eq confines the range to just key k
func (r Range) Eq(k []byte) Range {
	return r.Gte(k).Lte(k)
}

// Gt confines the range to keys that are
// greater than k
func (r Range) Gt(k []byte) Range {
	return r.refineMin(after(k))
}

// Gte confines the range to keys that are
// greater than or equal to k
func (r Range) Gte(k []byte) Range {
	return r.refineMin(k)
}

// Lt confines the range to keys that are
// less than k
func (r Range) Lt(k []byte) Range {
	return r.refineMax(k)
}

// Lte confines the range to keys that are
// less than or equal to k
func (r Range) Lte(k []byte) Range {
	return r.refineMax(after(k))
}

// Prefix confines the range to keys that
// have the prefix k, including k itself
func (r Range) Prefix(k []byte) Range {
	r = r.Gte(k)

	if max := inc(k); max != nil {
		r = r.Lt(max)
	}

	return r
}

// Namespace namespaces keys in the range with
// to keys with the prefix ns. Subsequent modifier
// methods will keep keys within this namespace.
func (r Range) Namespace(ns []byte) Range {
	r.Min = prefix(r.Min, ns)

	if r.Max == nil {
		r.Max = inc(ns)
	} else {
		r.Max = prefix(r.Max, ns)
	}

	r.ns = prefix(r.ns, ns)

	return r
}

// Contains returns true if k is inside
// the range
func (r Range) Contains(k []byte) bool {
	if r.Min != nil && bytes.Compare(k, r.Min) < 0 {
		return false
	}

	if r.Max != nil && bytes.Compare(k, r.Max) >= 0 {
		return false
	}

	return true
}

func (r Range) refineMin(min []byte) Range {
	if len(r.ns) > 0 {
		min = prefix(min, r.ns)
	}

	if compare(min, r.Min) <= 0 {
		return r
	}

	r.Min = min

	return r
}

func (r Range) refineMax(max []byte) Range {
	if len(r.ns) > 0 {
		max = prefix(max, r.ns)
	}

	if r.Max != nil && compare(max, r.Max) >= 0 {
		return r
	}

	r.Max = max

	return r
}

func compare(a []byte, b []byte) int {
	if a == nil {
		if b == nil {
			return 0
		}

		return -1
	}

	if b == nil {
		return 1
	}

	return bytes.Compare(a, b)
}

// after returns the key directly after k such that
// there can exist no other key that comes between
// k and after(k)
func after(k []byte) []byte {
	afterK := make([]byte, len(k)+1)

	copy(afterK, k)
	afterK[len(k)] = 0

	return afterK
}

// inc returns the smallest key greater than every
// key with the prefix k. It returns nil if no such
// key exists.
func inc(k []byte) []byte {
	incK := make([]byte, len(k))

	copy(incK, k)

	for i := len(incK) - 1; i >= 0; i-- {
		if incK[i] < 0xff {
			incK[i]++

			return incK[:i+1]
		}
	}

	// Every byte was 0xff. The range should just go
	// all the way to the end of the real key range.
	return nil
}

// prefix prepends p to k
func prefix(k []byte, p []byte) []byte {
	if len(k) == 0 && len(p) == 0 {
		return k
	}

	prefixedK := make([]byte, 0, len(p)+len(k))
	prefixedK = append(prefixedK, p...)
	prefixedK = append(prefixedK, k...)

	return prefixedK
}
