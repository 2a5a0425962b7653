package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSenderType(t *testing.T) {
	cases := map[string]SenderType{
		"customer": SenderCustomer,
		" User ":   SenderCustomer,
		"agent":    SenderAgent,
		"CS":       SenderAgent,
		"bot":      SenderSystem,
		"":         SenderUnknown,
		"robot":    SenderUnknown,
	}
	for raw, want := range cases {
		assert.Equal(t, want, ParseSenderType(raw), raw)
	}
}
