package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFeeCents(t *testing.T) {
	tests := []struct {
		amount float64
		want   int64
	}{
		{0, 0},
		{0.07, 7},
		{19.99, 1999},
		{29.99, 2999},
		{250, 25000},
		{1234.56, 123456},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, feeCents(tt.amount), "amount %v", tt.amount)
	}
}
