package transfer

import (
	"fmt"
	"math"
	"reflect"
)

// Options is an insertion-ordered set of mechanism settings.
// The zero value is empty and ready to use.
type Options struct {
	keys   []string
	values map[string]any
}

// NewOptions builds Options from alternating key/value arguments.
// It panics on an odd argument count or a non-string key.
func NewOptions(kv ...any) Options {
	if len(kv)%2 != 0 {
		panic("transfer: NewOptions needs key/value pairs")
	}
	var o Options
	for i := 0; i < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("transfer: option key %v is not a string", kv[i]))
		}
		o.Set(k, kv[i+1])
	}
	return o
}

// Set stores v under k. A new key is appended, an existing one keeps its position.
func (o *Options) Set(k string, v any) {
	if o.values == nil {
		o.values = make(map[string]any)
	}
	if _, exists := o.values[k]; !exists {
		o.keys = append(o.keys, k)
	}
	o.values[k] = v
}

func (o Options) Get(k string) (any, bool) {
	v, ok := o.values[k]
	return v, ok
}

// String returns the value under k formatted as a string, or "" when unset.
func (o Options) String(k string) string {
	v, ok := o.values[k]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	}
	return fmt.Sprint(v)
}

// Bool reports whether k is set to a truthy value ("1", "true", "yes" or true).
func (o Options) Bool(k string) bool {
	switch v := o.values[k].(type) {
	case bool:
		return v
	case string:
		switch v {
		case "1", "true", "yes", "y":
			return true
		}
	}
	return false
}

func (o Options) Keys() []string {
	keys := make([]string, len(o.keys))
	copy(keys, o.keys)
	return keys
}

func (o Options) Len() int { return len(o.keys) }

func (o Options) Clone() Options {
	var c Options
	for _, k := range o.keys {
		c.Set(k, o.values[k])
	}
	return c
}

// Merge returns a copy of o overlaid with other.
func (o Options) Merge(other Options) Options {
	m := o.Clone()
	for _, k := range other.keys {
		m.Set(k, other.values[k])
	}
	return m
}

// Equal compares as a mapping: key order does not matter.
func (o Options) Equal(other Options) bool {
	if len(o.keys) != len(other.keys) {
		return false
	}
	for k, v := range o.values {
		ov, ok := other.values[k]
		if !ok || !reflect.DeepEqual(v, ov) {
			return false
		}
	}
	return true
}

// Range selects Length bytes starting at Offset.
type Range struct {
	Offset int64
	Length int64
}

func (r *Range) String() string {
	if r == nil {
		return "none"
	}
	return fmt.Sprintf("(%d, %d)", r.Offset, r.Length)
}

func (r *Range) Validate() error {
	if r == nil {
		return nil
	}
	if r.Offset < 0 {
		return fmt.Errorf("invalid range offset %d", r.Offset)
	}
	if r.Length <= 0 {
		return fmt.Errorf("invalid range length %d", r.Length)
	}
	if r.Length > math.MaxInt64-r.Offset {
		return fmt.Errorf("range (%d, %d) overflows", r.Offset, r.Length)
	}
	return nil
}

// HTTPHeader renders the range as an HTTP Range header value.
func (r *Range) HTTPHeader() string {
	return fmt.Sprintf("bytes=%d-%d", r.Offset, r.Offset+r.Length-1)
}

func (r *Range) equal(other *Range) bool {
	if r == nil || other == nil {
		return r == other
	}
	return *r == *other
}
