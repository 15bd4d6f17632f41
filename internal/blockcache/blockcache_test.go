package blockcache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetSetRoundTrip(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	_, ok := c.Get("missing")
	require.False(t, ok, "Get on empty cache returned ok=true")

	c.Set("k", []byte("hello"))
	v, ok := c.Get("k")
	require.True(t, ok, "Get after Set returned ok=false")
	require.Equal(t, "hello", string(v))
}
