package store

import (
	"context"
	"errors"
	"time"

	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/model"
)

// ErrNotFound is returned when a key is not found
var ErrNotFound = errors.New("not found")

// ErrAlreadyResolved is returned when resolving an action that already
// reached a terminal outcome. Terminal outcomes are final per action ID.
var ErrAlreadyResolved = errors.New("action already resolved")

// LedgerStore is the append-only record of issued healing actions. The
// pending record must be durably written before the control plane is
// invoked (write-ahead), so a crash mid-action is recoverable.
type LedgerStore interface {
	AppendAction(ctx context.Context, rec *model.ActionRecord) error
	ResolveAction(ctx context.Context, actionID string, outcome model.ActionOutcome, errMsg string) error
	GetAction(ctx context.Context, actionID string) (*model.ActionRecord, error)
	PendingActions(ctx context.Context) ([]*model.ActionRecord, error)

	// Health check
	Ping(ctx context.Context) error
	Close()
}

// NodeRecordStore persists tracker state across restarts, keyed by node ID.
type NodeRecordStore interface {
	SaveNodeRecord(ctx context.Context, rec *model.NodeRecord) error
	DeleteNodeRecord(ctx context.Context, nodeID string) error
	ListNodeRecords(ctx context.Context) ([]*model.NodeRecord, error)
}

// DedupStore marks keys for a TTL window so repeated alerts can be
// suppressed.
type DedupStore interface {
	// MarkOnce returns true if the key was not yet marked within its
	// window, claiming it for ttl.
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}
