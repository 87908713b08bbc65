// Package parallel splits index loops across goroutines for the CPU kernels.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls how For fans out.
type Config struct {
	Enabled      bool
	NumWorkers   int
	MinChunkSize int // loops shorter than this run inline
}

// DefaultConfig uses every CPU.
func DefaultConfig() Config {
	return WithWorkers(0)
}

// WithWorkers returns a config with n workers. n <= 0 means runtime.NumCPU;
// n == 1 runs everything on the calling goroutine.
func WithWorkers(n int) Config {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return Config{Enabled: n > 1, NumWorkers: n, MinChunkSize: 64}
}

func (c Config) inline(n int) bool {
	return !c.Enabled || c.NumWorkers < 2 || n < c.MinChunkSize
}

// For calls f for every i in [0, n) and returns when all calls are done.
// Calls may run concurrently, so f must only write state owned by i.
func For(n int, f func(i int), cfg Config) {
	if cfg.inline(n) {
		for i := range n {
			f(i)
		}
		return
	}

	chunk := max(cfg.MinChunkSize, (n+cfg.NumWorkers-1)/cfg.NumWorkers)
	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				f(i)
			}
		}()
	}
	wg.Wait()
}
