package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Tx is a single optimistic unit of work. Reads go through the watched
// connection; writes are queued and applied in one MULTI/EXEC on success.
type Tx struct {
	ctx  context.Context
	rtx  *redis.Tx
	cmds []func(pipe redis.Pipeliner)
}

// Get reads a key through the watched connection. Returns redis.Nil for a
// missing key, like the underlying client.
func (t *Tx) Get(key string) ([]byte, error) {
	return t.rtx.Get(t.ctx, key).Bytes()
}

// HGet reads a hash field through the watched connection.
func (t *Tx) HGet(key, field string) (string, error) {
	return t.rtx.HGet(t.ctx, key, field).Result()
}

// Queue registers a write to be applied when the unit commits.
func (t *Tx) Queue(cmd func(pipe redis.Pipeliner)) {
	t.cmds = append(t.cmds, cmd)
}

// Atomic executes fn against a consistent view of the watched keys and then
// applies every queued write as one transaction. If any watched key changes
// before EXEC, the unit fails with redis.TxFailedErr and nothing is written.
// An error returned by fn discards the queued writes.
func (c *Client) Atomic(ctx context.Context, fn func(tx *Tx) error, watchKeys ...string) error {
	return c.Watch(ctx, func(rtx *redis.Tx) error {
		tx := &Tx{ctx: ctx, rtx: rtx}
		if err := fn(tx); err != nil {
			return err
		}
		_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, cmd := range tx.cmds {
				cmd(pipe)
			}
			return nil
		})
		return err
	}, watchKeys...)
}
