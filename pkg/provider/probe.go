package provider

import (
	"context"
	stderrors "errors"
	"sync"
	"time"
)

/*
capabilityProbe runs a check until it reaches a verdict and remembers it, so
an adapter can be constructed without its optional runtime and only fail
when a method that needs it is called.

The check runs detached from the caller, bounded by its own timeout. A
check that ends on a context error has no verdict and is retried on the
next call.
*/
type capabilityProbe struct {
	mu      sync.Mutex
	done    bool
	err     error
	timeout time.Duration
	check   func(context.Context) error
}

func newCapabilityProbe(timeout time.Duration, check func(context.Context) error) *capabilityProbe {
	return &capabilityProbe{timeout: timeout, check: check}
}

func (probe *capabilityProbe) ensure(ctx context.Context) error {
	probe.mu.Lock()
	defer probe.mu.Unlock()

	if probe.done {
		return probe.err
	}

	checkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), probe.timeout)
	defer cancel()

	err := probe.check(checkCtx)

	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}

	probe.done = true
	probe.err = err

	return err
}
