package attest

import "context"

type subjectKey struct{}

// WithSubject records the authenticated caller on ctx. Create and Update
// attach it to their spans and log lines.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey{}, subject)
}

// Subject returns the caller stored by WithSubject, or "".
func Subject(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey{}).(string)
	return s
}
