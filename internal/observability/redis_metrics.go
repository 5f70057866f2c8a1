package observability

import (
	"context"
	"net"
	"strings"

	"github.com/redis/go-redis/v9"
)

// KeyspaceHook observes every redis command: hit/miss classification for
// reads and error classing for everything. Attach with client.AddHook.
type KeyspaceHook struct {
	metrics *Metrics
}

func NewKeyspaceHook(metrics *Metrics) *KeyspaceHook {
	return &KeyspaceHook{metrics: metrics}
}

func (h *KeyspaceHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		if err != nil {
			h.metrics.RedisErrors.WithLabelValues(classifyRedisError(err)).Inc()
		}
		return conn, err
	}
}

func (h *KeyspaceHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		h.observe(cmd)
		if err != nil && err != redis.Nil {
			h.metrics.RedisErrors.WithLabelValues(classifyRedisError(err)).Inc()
		}
		return err
	}
}

func (h *KeyspaceHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		for _, cmd := range cmds {
			h.observe(cmd)
		}
		if err != nil && err != redis.Nil {
			h.metrics.RedisErrors.WithLabelValues(classifyRedisError(err)).Inc()
		}
		return err
	}
}

func (h *KeyspaceHook) observe(cmd redis.Cmder) {
	hits, misses, ok := classifyKeyspaceOutcome(cmd)
	if !ok {
		return
	}
	name := strings.ToLower(cmd.Name())
	if hits > 0 {
		h.metrics.CacheHits.WithLabelValues(name).Add(float64(hits))
	}
	if misses > 0 {
		h.metrics.CacheMisses.WithLabelValues(name).Add(float64(misses))
	}
}

// classifyKeyspaceOutcome reports hit/miss counts for read commands. The
// third return is false for commands that are not keyspace reads.
func classifyKeyspaceOutcome(cmd redis.Cmder) (hits, misses int, ok bool) {
	switch strings.ToLower(cmd.Name()) {
	case "get":
		if cmd.Err() == redis.Nil {
			return 0, 1, true
		}
		if cmd.Err() == nil {
			return 1, 0, true
		}
		return 0, 0, false
	case "mget":
		slice, isSlice := cmd.(*redis.SliceCmd)
		if !isSlice || cmd.Err() != nil {
			return 0, 0, false
		}
		for _, v := range slice.Val() {
			if v == nil {
				misses++
			} else {
				hits++
			}
		}
		return hits, misses, true
	default:
		return 0, 0, false
	}
}

func classifyRedisError(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return "timeout"
	case strings.Contains(msg, "connection") || strings.Contains(msg, "refused") || strings.Contains(msg, "reset"):
		return "connection"
	default:
		return "other"
	}
}
