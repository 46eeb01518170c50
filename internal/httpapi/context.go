package httpapi

import "context"

// baseCtx is the process lifetime context. Generation relays join it with the
// request context so in-flight sequences stop on shutdown, not only when the
// client disconnects.
var baseCtx = context.Background()

// SetBaseContext installs the process lifetime context. Called once at
// startup, before the server accepts requests.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	baseCtx = ctx
}

// joinContexts derives a context that is done when either input is. The
// returned cancel releases the watcher goroutine; callers must always call it.
func joinContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-a.Done():
		case <-b.Done():
		case <-ctx.Done():
		}
		cancel()
	}()
	return ctx, cancel
}
