package fn

import "sync"

// ParMap calls f(i, items[i]) for every item on a pool of at most workers
// goroutines. out[i] always holds the result for items[i]. A workers value
// of zero or less runs one goroutine per item.
func ParMap[T, U any](items []T, workers int, f func(int, T) U) []U {
	out := make([]U, len(items))
	if workers <= 0 || workers > len(items) {
		workers = len(items)
	}

	next := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for i := range next {
				out[i] = f(i, items[i])
			}
		}()
	}
	for i := range items {
		next <- i
	}
	close(next)
	wg.Wait()
	return out
}

// FanOut runs every function on its own goroutine and returns once all of
// them have returned. out[i] is the result of fns[i], whatever the
// completion order.
func FanOut[T any](fns ...func() T) []T {
	out := make([]T, len(fns))
	var wg sync.WaitGroup
	wg.Add(len(fns))
	for i, f := range fns {
		go func() {
			defer wg.Done()
			out[i] = f()
		}()
	}
	wg.Wait()
	return out
}
