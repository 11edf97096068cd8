package service

import (
	"context"
	"sync"
	"time"

	pkgerrors "prato/pkg/domain-errors"
)

// StoreTx is the transactional boundary around step-2 finalization.
// The postgres store wraps a real database transaction; the in-memory
// implementation serializes per document with sharded mutexes.
type StoreTx interface {
	RunInTx(ctx context.Context, documentKey string, fn func(ctx context.Context) error) error
}

// Operations on distinct documents must not contend, so the lock is sharded
// by a hash of the document digits rather than held globally.
const numTxShards = 128

// defaultTxTimeout bounds how long a finalization may hold its shard.
const defaultTxTimeout = 5 * time.Second

type ShardedTx struct {
	shards  [numTxShards]sync.Mutex
	timeout time.Duration
}

func NewShardedTx() *ShardedTx {
	return &ShardedTx{}
}

func (t *ShardedTx) RunInTx(ctx context.Context, documentKey string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := int(hashString(documentKey) % numTxShards)
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	// Check again after acquiring the lock.
	if err := ctx.Err(); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(ctx)
}

// hashString uses FNV-1a for even shard distribution.
func hashString(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
