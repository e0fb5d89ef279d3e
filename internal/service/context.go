package service

import (
	"context"
	"time"
)

const defaultPersistTimeout = 5 * time.Second

// opContext bounds a persistence operation. When the inbound request already
// carries a tighter deadline, that deadline wins.
func opContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = defaultPersistTimeout
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= timeout {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
