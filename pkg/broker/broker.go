// Package broker wraps the Redis Streams operations the pipeline relies on:
// append/range, consumer groups, hashes with TTL, sets, atomic counters and
// SET NX EX cooldowns. Sorted sets are not wrapped; they are reachable only
// through Raw(). Grounded on the Redis Streams consumer
// pattern used across the retrieval pack (e.g. an algo-trading stream
// reader), rebuilt on go-redis/v9.
package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// StreamName is the shared raw-log stream every producer appends to and the
// consumer group reads from, matching original_source/app/streams/utils.py's
// STREAM_NAME.
const StreamName = "logs"

// Message is one entry read from a stream.
type Message struct {
	ID     string
	Fields map[string]string
}

// Broker is a thin façade over *redis.Client matching the external
// interface contract: append, range/rev-range, xread_group, ack,
// create_group, plus hash/TTL, set and atomic-counter helpers.
type Broker struct {
	rdb *redis.Client
}

// New dials Redis and verifies connectivity.
func New(ctx context.Context, addr, password string, db int) (*Broker, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	slog.Info("broker connected", "addr", addr, "db", db)
	return &Broker{rdb: rdb}, nil
}

// Close releases the underlying connection pool.
func (b *Broker) Close() error {
	return b.rdb.Close()
}

// Raw exposes the underlying client for call sites needing operations this
// façade doesn't wrap (e.g. pipelines).
func (b *Broker) Raw() *redis.Client {
	return b.rdb
}

// Append is XADD stream * field1 val1 field2 val2 ... and returns the
// assigned "<ms>-<seq>" stream ID.
func (b *Broker) Append(ctx context.Context, stream string, fields map[string]any) (string, error) {
	id, err := b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: fields,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", stream, err)
	}
	return id, nil
}

// CreateGroup creates a consumer group with MKSTREAM, starting from id
// (use "0" to replay from the start, "$" for new messages only). Already
// existing groups are treated as success (BUSYGROUP is swallowed).
func (b *Broker) CreateGroup(ctx context.Context, stream, group, id string) error {
	err := b.rdb.XGroupCreateMkStream(ctx, stream, group, id).Err()
	if err != nil && !isBusyGroup(err) {
		return fmt.Errorf("xgroup create %s/%s: %w", stream, group, err)
	}
	return nil
}

func isBusyGroup(err error) bool {
	return err != nil && len(err.Error()) >= 9 && err.Error()[:9] == "BUSYGROUP"
}

// ReadGroupArgs configures a blocking XREADGROUP call across one or more
// streams, all read from ">" (new, undelivered messages for this consumer).
type ReadGroupArgs struct {
	Group    string
	Consumer string
	Streams  []string
	Count    int64
	Block    time.Duration
}

// ReadGroup reads new, never-delivered messages (">") for the given
// consumer; entries already delivered but not yet acknowledged are not
// read again. It returns (nil, nil) on a block timeout so callers can loop
// without treating redis.Nil as an error.
func (b *Broker) ReadGroup(ctx context.Context, args ReadGroupArgs) (map[string][]Message, error) {
	streamArgs := make([]string, 0, len(args.Streams)*2)
	streamArgs = append(streamArgs, args.Streams...)
	for range args.Streams {
		streamArgs = append(streamArgs, ">")
	}

	res, err := b.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    args.Group,
		Consumer: args.Consumer,
		Streams:  streamArgs,
		Count:    args.Count,
		Block:    args.Block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup %v: %w", args.Streams, err)
	}

	out := make(map[string][]Message, len(res))
	for _, s := range res {
		msgs := make([]Message, 0, len(s.Messages))
		for _, m := range s.Messages {
			fields := make(map[string]string, len(m.Values))
			for k, v := range m.Values {
				if sv, ok := v.(string); ok {
					fields[k] = sv
				} else {
					fields[k] = fmt.Sprintf("%v", v)
				}
			}
			msgs = append(msgs, Message{ID: m.ID, Fields: fields})
		}
		out[s.Stream] = msgs
	}
	return out, nil
}

// Ack acknowledges one or more message IDs for a consumer group.
func (b *Broker) Ack(ctx context.Context, stream, group string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := b.rdb.XAck(ctx, stream, group, ids...).Err(); err != nil {
		return fmt.Errorf("xack %s/%s: %w", stream, group, err)
	}
	return nil
}

// Range is XRANGE stream from to, optionally bounded by count.
func (b *Broker) Range(ctx context.Context, stream, from, to string, count int64) ([]Message, error) {
	var res []redis.XMessage
	var err error
	if count > 0 {
		res, err = b.rdb.XRangeN(ctx, stream, from, to, count).Result()
	} else {
		res, err = b.rdb.XRange(ctx, stream, from, to).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("xrange %s: %w", stream, err)
	}
	return toMessages(res), nil
}

// RevRange is XREVRANGE stream from to, optionally bounded by count.
func (b *Broker) RevRange(ctx context.Context, stream, from, to string, count int64) ([]Message, error) {
	var res []redis.XMessage
	var err error
	if count > 0 {
		res, err = b.rdb.XRevRangeN(ctx, stream, from, to, count).Result()
	} else {
		res, err = b.rdb.XRevRange(ctx, stream, from, to).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("xrevrange %s: %w", stream, err)
	}
	return toMessages(res), nil
}

func toMessages(res []redis.XMessage) []Message {
	out := make([]Message, 0, len(res))
	for _, m := range res {
		fields := make(map[string]string, len(m.Values))
		for k, v := range m.Values {
			if sv, ok := v.(string); ok {
				fields[k] = sv
			} else {
				fields[k] = fmt.Sprintf("%v", v)
			}
		}
		out = append(out, Message{ID: m.ID, Fields: fields})
	}
	return out
}

// HSetTTL writes a hash and applies an expiry in one round trip.
func (b *Broker) HSetTTL(ctx context.Context, key string, fields map[string]any, ttl time.Duration) error {
	pipe := b.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("hset+expire %s: %w", key, err)
	}
	return nil
}

// HIncrBy atomically increments a hash field, creating the hash if needed and
// resetting its expiry to ttl on every call. Used for the hourly cluster-metrics counter hashes.
func (b *Broker) HIncrBy(ctx context.Context, key, field string, delta int64, ttl time.Duration) (int64, error) {
	pipe := b.rdb.TxPipeline()
	incr := pipe.HIncrBy(ctx, key, field, delta)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("hincrby %s %s: %w", key, field, err)
	}
	return incr.Val(), nil
}

// HIncrByFloat atomically increments a hash field by a floating-point delta,
// used for the total_cost_usd LLM cost counter.
func (b *Broker) HIncrByFloat(ctx context.Context, key, field string, delta float64) (float64, error) {
	v, err := b.rdb.HIncrByFloat(ctx, key, field, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("hincrbyfloat %s %s: %w", key, field, err)
	}
	return v, nil
}

// HGetAll reads every field of a hash.
func (b *Broker) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	res, err := b.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", key, err)
	}
	return res, nil
}

// Persist removes the TTL on a key (used when an alert is marked persisted).
func (b *Broker) Persist(ctx context.Context, key string) error {
	if err := b.rdb.Persist(ctx, key).Err(); err != nil {
		return fmt.Errorf("persist %s: %w", key, err)
	}
	return nil
}

// SAdd adds members to a set.
func (b *Broker) SAdd(ctx context.Context, key string, members ...any) error {
	if err := b.rdb.SAdd(ctx, key, members...).Err(); err != nil {
		return fmt.Errorf("sadd %s: %w", key, err)
	}
	return nil
}

// SMembers returns every member of a set.
func (b *Broker) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := b.rdb.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers %s: %w", key, err)
	}
	return members, nil
}

// SIsMember reports whether member is in the set.
func (b *Broker) SIsMember(ctx context.Context, key string, member any) (bool, error) {
	ok, err := b.rdb.SIsMember(ctx, key, member).Result()
	if err != nil {
		return false, fmt.Errorf("sismember %s: %w", key, err)
	}
	return ok, nil
}

// Incr atomically increments a counter key and returns the new value.
func (b *Broker) Incr(ctx context.Context, key string) (int64, error) {
	v, err := b.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	return v, nil
}

// SetNXTTL implements the SET NX EX cooldown contract: it returns true if
// this call acquired the key (i.e. no prior value existed), false if the
// key was already held by a previous acquirer within its TTL.
func (b *Broker) SetNXTTL(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := b.rdb.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("set nx ex %s: %w", key, err)
	}
	return ok, nil
}

// SetJSON stores a JSON-ish scalar string with optional TTL (used for
// cluster_metrics:* snapshot keys).
func (b *Broker) SetJSON(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := b.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Get reads a scalar string value.
func (b *Broker) Get(ctx context.Context, key string) (string, error) {
	v, err := b.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return v, nil
}
