package httpapi

import (
	"context"
)

// serverBaseCtx bounds long handler work (scale, drains) to the daemon's
// lifetime. Background until SetBaseContext is called.
var serverBaseCtx = context.Background()

// SetBaseContext installs the daemon lifetime context; nil resets to Background.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

// joinContexts derives a context that ends as soon as either parent does, so a
// handler stops on client disconnect as well as daemon shutdown. Callers must
// invoke cancel to reap the watcher goroutine.
func joinContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-a.Done():
			cancel()
		case <-b.Done():
			cancel()
		}
	}()
	return ctx, cancel
}
