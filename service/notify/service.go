package notify

import "context"

// Service delivers an outbound notification. Implementations are external
// collaborators (email, chat); a delivery failure must never change the
// outcome of a run — callers log and swallow it.
type Service interface {
	Send(ctx context.Context, recipient, subject, body string) error
}
