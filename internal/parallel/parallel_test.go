package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFor(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		n    int
	}{
		{"default", DefaultConfig(), 1000},
		{"four workers", WithWorkers(4), 500},
		{"disabled", Config{}, 100},
		{"below chunk size", WithWorkers(8), 10},
		{"empty", WithWorkers(4), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen := make([]int32, tt.n)
			For(tt.n, func(i int) { atomic.AddInt32(&seen[i], 1) }, tt.cfg)
			for i, v := range seen {
				assert.Equal(t, int32(1), v, "index %d", i)
			}
		})
	}
}

func TestWithWorkers(t *testing.T) {
	assert.False(t, WithWorkers(1).Enabled)
	assert.True(t, WithWorkers(3).Enabled)
	assert.Positive(t, WithWorkers(0).NumWorkers)
	assert.True(t, WithWorkers(1).inline(1000))
	assert.False(t, WithWorkers(2).inline(1000))
}

func BenchmarkFor(b *testing.B) {
	row := make([]float64, 4096)
	for _, cfg := range []struct {
		name string
		cfg  Config
	}{{"parallel", DefaultConfig()}, {"sequential", Config{}}} {
		b.Run(cfg.name, func(b *testing.B) {
			for range b.N {
				For(len(row), func(i int) { row[i] = float64(i) * 0.5 }, cfg.cfg)
			}
		})
	}
}
