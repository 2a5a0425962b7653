package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSetNormalizesAndOrders(t *testing.T) {
	set := NewSet([]string{" Halo ", "hai kak", "", "halo", "HAI", "  "})
	assert.Equal(t, Set{"hai kak", "halo", "hai"}, set)
}

func TestSetMatchPrefersLongestKeyword(t *testing.T) {
	set := NewSet([]string{"book", "booking"})

	kw, ok := set.Match("Saya mau BOOKING besok")
	assert.True(t, ok)
	assert.Equal(t, "booking", kw)

	_, ok = set.Match("halo")
	assert.False(t, ok)

	_, ok = Set(nil).Match("booking")
	assert.False(t, ok)
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" Booking ")
	assert.NoError(t, err)
	assert.Equal(t, CategoryBooking, c)

	_, err = ParseCategory("refund")
	assert.ErrorIs(t, err, ErrInvalidCategory)
}
