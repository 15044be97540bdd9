package transfer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsKeepInsertionOrder(t *testing.T) {
	o := NewOptions("b", 1, "a", 2)
	o.Set("c", 3)
	o.Set("b", 4)

	assert.Equal(t, []string{"b", "a", "c"}, o.Keys())
	v, ok := o.Get("b")
	require.True(t, ok)
	assert.Equal(t, 4, v)
	assert.Equal(t, "4", o.String("b"))
	assert.Equal(t, "", o.String("missing"))
}

func TestOptionsEqualIgnoresOrder(t *testing.T) {
	assert.True(t, NewOptions("a", 1, "b", "x").Equal(NewOptions("b", "x", "a", 1)))
	assert.False(t, NewOptions("a", 1).Equal(NewOptions("a", "1")))
	assert.False(t, NewOptions("a", 1).Equal(NewOptions("a", 1, "b", 2)))
	assert.True(t, Options{}.Equal(NewOptions()))
}

func TestOptionsMergeDoesNotModifyReceiver(t *testing.T) {
	base := NewOptions("user", "a", "port", "21")
	merged := base.Merge(NewOptions("password", "p", "user", "b"))

	assert.Equal(t, []string{"user", "port", "password"}, merged.Keys())
	assert.Equal(t, "b", merged.String("user"))
	assert.Equal(t, "a", base.String("user"))
	assert.Equal(t, 2, base.Len())
}

func TestOptionsBool(t *testing.T) {
	o := NewOptions("a", true, "b", "yes", "c", "no", "d", 1)
	assert.True(t, o.Bool("a"))
	assert.True(t, o.Bool("b"))
	assert.False(t, o.Bool("c"))
	assert.False(t, o.Bool("d"))
	assert.False(t, o.Bool("missing"))
}

func TestNewOptionsPanicsOnBadPairs(t *testing.T) {
	assert.Panics(t, func() { NewOptions("a") })
	assert.Panics(t, func() { NewOptions(1, "a") })
}

func TestRange(t *testing.T) {
	var none *Range
	assert.Equal(t, "none", none.String())
	assert.NoError(t, none.Validate())

	r := &Range{Offset: 100, Length: 50}
	assert.Equal(t, "(100, 50)", r.String())
	assert.Equal(t, "bytes=100-149", r.HTTPHeader())
	assert.NoError(t, r.Validate())

	assert.Error(t, (&Range{Offset: 0, Length: 0}).Validate())
	assert.Error(t, (&Range{Offset: -1, Length: 1}).Validate())
	assert.Error(t, (&Range{Offset: 10, Length: math.MaxInt64}).Validate())
	assert.NoError(t, (&Range{Offset: 0, Length: math.MaxInt64}).Validate())

	assert.True(t, r.equal(&Range{Offset: 100, Length: 50}))
	assert.False(t, r.equal(nil))
	assert.True(t, none.equal(nil))
}

func TestOptionCacheGetAndReset(t *testing.T) {
	c := NewOptionCache()
	_, ok := c.Get("k")
	assert.False(t, ok)

	opts, err := c.Resolve("k", func() (Options, error) { return NewOptions("x", 1), nil })
	require.NoError(t, err)
	assert.Equal(t, 1, opts.Len())

	cached, ok := c.Get("k")
	require.True(t, ok)
	assert.True(t, cached.Equal(opts))
	assert.Equal(t, 1, c.Len())

	c.Reset()
	assert.Equal(t, 0, c.Len())
}
