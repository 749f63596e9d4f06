package llm

import "context"

// Attribution says what a model call is for and on whose behalf. It rides
// on the context and is stamped on every recorded request event.
type Attribution struct {
	Purpose  string
	ThreadID string
	UserID   string
}

type attributionKey struct{}

// WithPurpose labels model calls made with ctx, keeping any thread and
// user already attached.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	a := attributionOf(ctx)
	a.Purpose = purpose
	return context.WithValue(ctx, attributionKey{}, a)
}

// WithThread attributes model calls made with ctx to a learner's thread.
func WithThread(ctx context.Context, userID, threadID string) context.Context {
	a := attributionOf(ctx)
	a.UserID = userID
	a.ThreadID = threadID
	return context.WithValue(ctx, attributionKey{}, a)
}

func attributionOf(ctx context.Context) Attribution {
	a, _ := ctx.Value(attributionKey{}).(Attribution)
	return a
}

// AttributionFrom returns the attribution carried by ctx. An unlabelled
// call has purpose "unknown".
func AttributionFrom(ctx context.Context) Attribution {
	a := attributionOf(ctx)
	if a.Purpose == "" {
		a.Purpose = "unknown"
	}
	return a
}

// PurposeFrom extracts the purpose label from the context.
func PurposeFrom(ctx context.Context) string {
	return AttributionFrom(ctx).Purpose
}
