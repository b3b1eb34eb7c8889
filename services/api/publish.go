package api

import "context"

// publishJSON is fire-and-forget: a missing bus or a publish error never
// fails the HTTP request that triggered it.
func (a *API) publishJSON(ctx context.Context, subject string, payload map[string]any) {
	if a.store.Bus == nil || subject == "" {
		return
	}
	_ = a.store.Bus.Publish(ctx, subject, payload)
}
