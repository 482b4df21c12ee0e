package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValueToString(t *testing.T) {
	tests := []struct {
		in   interface{}
		want string
	}{
		{"stm32h743", "stm32h743"},
		{0, "0"},
		{-42, "-42"},
		{int64(-9000000000), "-9000000000"},
		{uint32(400000000), "400000000"},
		{uint8(255), "255"},
		{uint64(1 << 40), "1099511627776"},
		{3.5, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, valueToString(tt.in), "%#v", tt.in)
	}
}
