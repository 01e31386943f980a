package value

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dolthub/swiss"
)

// Object is an insertion-ordered mapping from property-name strings
// to values (spec.md §3.5). Property lookup is hashed through a
// swiss-table index; iteration order is preserved separately in
// keys, since swiss.Map itself does not guarantee insertion order.
type Object struct {
	keys  []string
	index *swiss.Map[string, int] // name -> position in keys/vals
	vals  []Value
}

// NewObject returns an empty object.
func NewObject() *Object {
	return &Object{index: swiss.NewMap[string, int](uint32(8))}
}

func (*Object) Kind() Kind { return KindObject }

func (o *Object) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(o.vals[i].String())
	}
	b.WriteByte('}')
	return b.String()
}

// Get returns the value stored at name, and whether it was present.
func (o *Object) Get(name string) (Value, bool) {
	i, ok := o.index.Get(name)
	if !ok {
		return nil, false
	}
	return o.vals[i], true
}

// Set stores value at name, updating in place if name already exists
// or appending (preserving insertion order) if it is new.
func (o *Object) Set(name string, val Value) {
	if i, ok := o.index.Get(name); ok {
		o.vals[i] = val
		return
	}
	o.index.Put(name, len(o.keys))
	o.keys = append(o.keys, name)
	o.vals = append(o.vals, val)
}

// Delete removes name from the object, if present.
func (o *Object) Delete(name string) {
	i, ok := o.index.Get(name)
	if !ok {
		return
	}
	o.keys = append(o.keys[:i], o.keys[i+1:]...)
	o.vals = append(o.vals[:i], o.vals[i+1:]...)
	o.index.Delete(name)
	for j := i; j < len(o.keys); j++ {
		o.index.Put(o.keys[j], j)
	}
}

// Keys returns the object's property names in insertion order. The
// caller must not mutate the returned slice.
func (o *Object) Keys() []string { return o.keys }

// Len returns the number of properties on the object.
func (o *Object) Len() int { return len(o.keys) }

// Array is an ordered, integer-indexed sequence of values (spec.md
// §3.5). Writing past the current end extends the array with
// undefined holes; Length always equals len(Elements).
type Array struct {
	Elements []Value
}

// NewArray returns an array holding elems (taking ownership of the
// slice).
func NewArray(elems []Value) *Array {
	return &Array{Elements: elems}
}

func (*Array) Kind() Kind { return KindArray }

func (a *Array) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, e := range a.Elements {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(e.String())
	}
	b.WriteByte(']')
	return b.String()
}

// Get returns the element at idx, or undefined if idx is out of
// range (reads never extend the array).
func (a *Array) Get(idx int) Value {
	if idx < 0 || idx >= len(a.Elements) {
		return UndefinedValue
	}
	return a.Elements[idx]
}

// Set stores val at idx, extending the array with undefined holes if
// idx is beyond the current length.
func (a *Array) Set(idx int, val Value) {
	if idx < 0 {
		return
	}
	for idx >= len(a.Elements) {
		a.Elements = append(a.Elements, UndefinedValue)
	}
	a.Elements[idx] = val
}

// Length returns the array's current length, exposed as the `length`
// property.
func (a *Array) Length() int { return len(a.Elements) }

// IndexFromKey parses a property-access key as an array index,
// reporting whether it names one ("length" and non-numeric keys do
// not).
func IndexFromKey(key string) (int, bool) {
	n, err := strconv.Atoi(key)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// KeyString renders an arbitrary value as a property-access key, the
// coercion `obj[expr]` applies to its computed key.
func KeyString(v Value) string {
	switch x := v.(type) {
	case String:
		return string(x)
	case Number:
		return x.String()
	default:
		return fmt.Sprint(v.String())
	}
}
