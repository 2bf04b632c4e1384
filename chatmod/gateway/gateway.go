package gateway

import (
	"context"
	"time"
)

// Gateway is the boundary to the chat platform transport: the component which
// actually deletes messages, restricts members, and bans users. All calls
// must be safe to issue redundantly: deleting an already-deleted message or
// banning an already-banned user is a harmless no-op, never an error.
type Gateway interface {
	DeleteContent(ctx context.Context, group, eventID string) error
	RestrictUser(ctx context.Context, group, user string, duration time.Duration) error
	RemoveUser(ctx context.Context, group, user string) error
	BanUser(ctx context.Context, group, user string) error
	NotifyAdmin(ctx context.Context, group, text string) error
}
