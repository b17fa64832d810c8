// Package store is the optional persistence layer: per room a metadata
// record, a member set and an ordered message list. The relay works without
// it; it only adds history across reconnects.
package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dkeye/roomrelay/internal/domain"
)

var ErrNotFound = errors.New("not found")

type Store interface {
	SaveRoom(ctx context.Context, meta domain.RoomMeta) error
	Room(ctx context.Context, code domain.RoomCode) (domain.RoomMeta, error)
	AddMember(ctx context.Context, code domain.RoomCode, identity domain.Identity) error
	RemoveMember(ctx context.Context, code domain.RoomCode, identity domain.Identity) error
	Members(ctx context.Context, code domain.RoomCode) ([]domain.Identity, error)
	AppendMessage(ctx context.Context, code domain.RoomCode, raw json.RawMessage) error
	// Messages returns up to limit most recent messages, oldest first.
	Messages(ctx context.Context, code domain.RoomCode, limit int) ([]json.RawMessage, error)
	Close() error
}
