// Package resilience provides the retry and throttling primitives used by the
// dashboard's clients and login endpoint.
//
//   - Retry / RetryFunc: bounded attempts with exponential backoff and jitter
//   - Backoff: stateful delay that grows on each failure and resets on success
//   - RateLimiter / KeyedRateLimiter: token buckets, globally or per key
//
// A polling loop that must never give up uses Backoff directly:
//
//	b := resilience.NewBackoff(resilience.BackoffConfig{Initial: 5 * time.Second, Max: time.Minute})
//	for {
//	    if err := poll(ctx); err != nil {
//	        wait = b.Next()
//	    } else {
//	        b.Reset()
//	        wait = b.Initial()
//	    }
//	}
package resilience
