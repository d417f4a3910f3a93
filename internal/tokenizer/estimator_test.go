package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApproximateEstimate(t *testing.T) {
	est := NewApproximate()

	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty text floors to one", "", 1},
		{"short text floors to one", "hi", 1},
		{"hello world", "Hello world", 2},
		{"long text scales with length", string(make([]byte, 400)), 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, est.Estimate(tt.text))
		})
	}
}

func TestEstimateIsDeterministic(t *testing.T) {
	est := NewApproximate()
	first := est.Estimate("the quick brown fox jumps over the lazy dog")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, est.Estimate("the quick brown fox jumps over the lazy dog"))
	}
}
