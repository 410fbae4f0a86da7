package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConvertNil(t *testing.T) {
	t.Parallel()
	assert.Nil(t, Converter{}.Convert(nil))
}

func TestConvertBytes(t *testing.T) {
	t.Parallel()
	c := Converter{}

	t.Run("valid utf8 decodes and trims", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "BOSTON", c.Convert([]byte("BOSTON   ")))
	})

	t.Run("invalid utf8 hex-encodes", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "fffe", c.Convert([]byte{0xFF, 0xFE}))
	})
}

func TestConvertStringTrims(t *testing.T) {
	t.Parallel()
	c := Converter{}

	// Fixed-width columns come back space-padded.
	assert.Equal(t, "ACME GLASS", c.Convert("ACME GLASS          "))
	assert.Equal(t, "", c.Convert("     "))
}

func TestConvertNumericCoercion(t *testing.T) {
	t.Parallel()
	c := Converter{CoerceNumerics: true}

	assert.Equal(t, int64(42), c.Convert("  42 "))
	assert.Equal(t, int64(-7), c.Convert("-7"))
	assert.Equal(t, 3.5, c.Convert("3.5"))
	assert.Equal(t, -0.25, c.Convert("-0.25"))

	// Not numeric-looking: stays a string.
	assert.Equal(t, "1.2.3", c.Convert("1.2.3"))
	assert.Equal(t, "12A", c.Convert("12A"))
	assert.Equal(t, "-", c.Convert("-"))
	assert.Equal(t, "", c.Convert(""))
}

func TestConvertCoercionDisabledByDefault(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "42", Converter{}.Convert("42"))
}

func TestConvertPassthrough(t *testing.T) {
	t.Parallel()
	c := Converter{CoerceNumerics: true}

	now := time.Now()
	assert.Equal(t, int64(9), c.Convert(int64(9)))
	assert.Equal(t, 1.5, c.Convert(1.5))
	assert.Equal(t, true, c.Convert(true))
	assert.Equal(t, now, c.Convert(now))
}

func TestConvertRow(t *testing.T) {
	t.Parallel()
	c := Converter{}

	row := c.ConvertRow([]any{"  padded ", []byte{0xFF, 0xFE}, nil, int64(3)})
	assert.Equal(t, []any{"padded", "fffe", nil, int64(3)}, row)
}
