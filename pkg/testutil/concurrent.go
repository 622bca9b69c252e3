package testutil

import (
	"errors"
	"sync"
	"sync/atomic"

	dErrors "attesto/pkg/domain-errors"
	"attesto/pkg/platform/sentinel"
)

// ConcurrentResult counts outcomes of a concurrent run by error class.
type ConcurrentResult struct {
	Successes int32
	Conflicts int32
	NotFounds int32
	Errors    int32
}

// Total returns the number of calls made.
func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.Conflicts + r.NotFounds + r.Errors
}

// RunConcurrent calls fn from n goroutines released at the same moment.
// Store sentinels and domain codes are classified alike, so the helper works
// against stores and services.
func RunConcurrent(n int, fn func(idx int) error) *ConcurrentResult {
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		ok    atomic.Int32
		dup   atomic.Int32
		miss  atomic.Int32
		other atomic.Int32
	)

	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			switch err := fn(i); {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, sentinel.ErrConflict), dErrors.HasCode(err, dErrors.CodeConflict):
				dup.Add(1)
			case errors.Is(err, sentinel.ErrNotFound), dErrors.HasCode(err, dErrors.CodeNotFound):
				miss.Add(1)
			default:
				other.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	return &ConcurrentResult{
		Successes: ok.Load(),
		Conflicts: dup.Load(),
		NotFounds: miss.Load(),
		Errors:    other.Load(),
	}
}
