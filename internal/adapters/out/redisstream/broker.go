// Package redisstream is the eventbus.Broker driver for Redis Streams.
//
// A topic is split into Config.Shards streams named "<topic>:<n>", and a
// message goes to the shard picked by a hash of its key. Every eventbus
// group is a Redis consumer group on each shard stream.
//
// At most one group member reads a shard at a time. Ownership is a lease
// key renewed while the member reads; the other members stand by and take
// the shard over when the lease is released or expires. The new owner first
// claims every entry still pending in the group, so a message whose handler
// failed is delivered again before anything behind it, whichever member
// handles it. Members publish a heartbeat and give up shards above their
// fair share so the shards spread across the group.
//
// Entries are acknowledged with XACK after the handler returned nil. A
// handler must finish within LeaseTTL or the shard may move while the
// entry is still being handled.
package redisstream

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"orderflow/internal/pkg/errs"
	"orderflow/internal/pkg/eventbus"
)

var ErrClosed = errors.New("redisstream: broker is closed")

const (
	fieldKey   = "key"
	fieldValue = "value"

	newEntries     = ">"
	pendingEntries = "0"
	streamStart    = "0-0"
)

// holdLease takes the lease when it is free and renews it when the caller
// already owns it.
var holdLease = redis.NewScript(`
local owner = redis.call('GET', KEYS[1])
if owner == false then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
	return 1
end
if owner == ARGV[1] then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
	return 1
end
return 0
`)

var releaseLease = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

type Config struct {
	// Consumer names this process inside every group. It must be unique per
	// process and stable across restarts.
	Consumer string
	// Shards is the number of streams per topic. Publishers and consumers
	// must agree on it.
	Shards int
	// LeaseTTL is how long a shard stays owned without renewal.
	LeaseTTL time.Duration
	// Block is how long one XREADGROUP waits for new entries. It is capped
	// at a third of LeaseTTL.
	Block time.Duration
	// Batch is the maximum number of entries read per call.
	Batch int64
	// RetryDelay is the pause after a handler or read failure.
	RetryDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.Shards <= 0 {
		c.Shards = 4
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = 10 * time.Second
	}
	if c.Block <= 0 {
		c.Block = time.Second
	}
	if c.Block > c.renewEvery() {
		c.Block = c.renewEvery()
	}
	if c.Batch <= 0 {
		c.Batch = 16
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 500 * time.Millisecond
	}
	return c
}

func (c Config) renewEvery() time.Duration {
	return c.LeaseTTL / 3
}

type Broker struct {
	client *redis.Client
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

var _ eventbus.Broker = (*Broker)(nil)

// NewBroker takes ownership of client; Close closes it.
func NewBroker(client *redis.Client, cfg Config, logger *slog.Logger) (*Broker, error) {
	if client == nil {
		return nil, errs.NewValueIsRequiredError("redis client")
	}
	if strings.TrimSpace(cfg.Consumer) == "" {
		return nil, errs.NewValueIsRequiredError("consumer name")
	}
	if logger == nil {
		return nil, errs.NewValueIsRequiredError("logger")
	}
	return &Broker{
		client: client,
		cfg:    cfg.withDefaults(),
		logger: logger.With("component", "redisstream"),
		done:   make(chan struct{}),
	}, nil
}

// Stream returns the shard stream that messages of topic with key go to.
func (b *Broker) Stream(topic, key string) string {
	return shardStream(topic, b.shardOf(key))
}

func (b *Broker) Publish(ctx context.Context, topic, key string, value []byte) error {
	if b.isClosed() {
		return ErrClosed
	}
	return b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: b.Stream(topic, key),
		Values: map[string]any{fieldKey: key, fieldValue: value},
	}).Err()
}

// shard is one stream read by a Consume call.
type shard struct {
	topic string
	index int
	name  string
	lease string
}

// membership tracks how many shards this member owns in a group and how
// many members the group has.
type membership struct {
	group   string
	total   int
	owned   atomic.Int64
	members atomic.Int64
}

func (m *membership) fairShare() int64 {
	members := max(m.members.Load(), 1)
	return (int64(m.total) + members - 1) / members
}

func (m *membership) mayTakeMore() bool {
	return m.owned.Load() < m.fairShare()
}

func (m *membership) overShare() bool {
	return m.owned.Load() > m.fairShare()
}

func (b *Broker) Consume(ctx context.Context, topics []string, groupID string, handler eventbus.RawHandler) error {
	if len(topics) == 0 {
		return errs.NewValueIsRequiredError("topics")
	}
	if groupID == "" {
		return errs.NewValueIsRequiredError("group id")
	}
	if b.isClosed() {
		return ErrClosed
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-b.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	shards := make([]shard, 0, len(topics)*b.cfg.Shards)
	for _, topic := range topics {
		for i := range b.cfg.Shards {
			name := shardStream(topic, i)
			if err := b.ensureGroup(ctx, name, groupID); err != nil {
				return err
			}
			shards = append(shards, shard{topic: topic, index: i, name: name, lease: leaseKey(groupID, name)})
		}
	}

	m := &membership{group: groupID, total: len(shards)}
	if err := b.heartbeat(ctx, m); err != nil {
		return fmt.Errorf("join group %s: %w", groupID, err)
	}
	defer b.leave(m)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b.keepHeartbeat(gctx, m)
		return nil
	})
	for _, s := range shards {
		g.Go(func() error {
			b.work(gctx, m, s, handler)
			return nil
		})
	}
	_ = g.Wait()

	if b.isClosed() {
		return ErrClosed
	}
	return nil
}

// work competes for the lease of s and reads it while owning it.
func (b *Broker) work(ctx context.Context, m *membership, s shard, handler eventbus.RawHandler) {
	logger := b.logger.With("group", m.group, "consumer", b.cfg.Consumer, "stream", s.name)
	for ctx.Err() == nil {
		if !m.mayTakeMore() {
			b.wait(ctx, b.cfg.renewEvery())
			continue
		}
		held, err := b.hold(ctx, s.lease)
		if err != nil {
			if ctx.Err() == nil {
				logger.WarnContext(ctx, "Shard lease failed", "error", err)
				b.wait(ctx, b.cfg.RetryDelay)
			}
			continue
		}
		if !held {
			b.wait(ctx, b.cfg.renewEvery())
			continue
		}

		m.owned.Add(1)
		logger.DebugContext(ctx, "Shard owned")
		err = b.own(ctx, m, s, handler, logger)
		m.owned.Add(-1)
		b.release(s.lease, logger)
		if err != nil && ctx.Err() == nil {
			logger.WarnContext(ctx, "Shard dropped", "error", err)
		}
		// leave the shard to the other members for one round
		b.wait(ctx, b.cfg.renewEvery())
	}
}

// own reads s until the lease is lost, the member is above its fair share
// or ctx is done.
func (b *Broker) own(ctx context.Context, m *membership, s shard, handler eventbus.RawHandler, logger *slog.Logger) error {
	if err := b.claimPending(ctx, m.group, s.name); err != nil {
		return err
	}

	readPending := true
	renewAt := time.Now().Add(b.cfg.renewEvery())
	for ctx.Err() == nil {
		if !time.Now().Before(renewAt) {
			held, err := b.hold(ctx, s.lease)
			if err != nil {
				return err
			}
			if !held {
				logger.WarnContext(ctx, "Shard lease lost")
				return nil
			}
			if m.overShare() {
				logger.InfoContext(ctx, "Shard handed over", "owned", m.owned.Load(), "share", m.fairShare())
				return nil
			}
			renewAt = time.Now().Add(b.cfg.renewEvery())
		}

		entries, err := b.read(ctx, m.group, s.name, readPending)
		if err != nil {
			if errors.Is(err, redis.Nil) {
				readPending = false
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			logger.WarnContext(ctx, "Stream read failed", "error", err)
			b.wait(ctx, b.cfg.RetryDelay)
			continue
		}

		handled, err := b.handle(ctx, s, m.group, entries, handler)
		if err != nil {
			logger.WarnContext(ctx, "Stream entry not acknowledged", "error", err)
			readPending = true
			b.wait(ctx, b.cfg.RetryDelay)
			continue
		}
		if readPending && handled == 0 {
			readPending = false
		}
	}
	return nil
}

func (b *Broker) hold(ctx context.Context, lease string) (bool, error) {
	n, err := holdLease.Run(ctx, b.client, []string{lease}, b.cfg.Consumer, b.cfg.LeaseTTL.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("hold lease %s: %w", lease, err)
	}
	return n == 1, nil
}

func (b *Broker) release(lease string, logger *slog.Logger) {
	if b.isClosed() {
		// the lease expires on its own
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := releaseLease.Run(ctx, b.client, []string{lease}, b.cfg.Consumer).Err(); err != nil {
		logger.DebugContext(ctx, "Shard lease not released", "error", err)
	}
}

// claimPending moves every pending entry of the group on stream to this
// consumer. Only the lease owner reads the stream, so whatever another
// member left unacknowledged is next in line.
func (b *Broker) claimPending(ctx context.Context, groupID, stream string) error {
	start := streamStart
	for {
		_, next, err := b.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   stream,
			Group:    groupID,
			Consumer: b.cfg.Consumer,
			Start:    start,
			Count:    b.cfg.Batch,
		}).Result()
		if err != nil {
			return fmt.Errorf("claim pending on %s: %w", stream, err)
		}
		if next == streamStart || next == "" {
			return nil
		}
		start = next
	}
}

func (b *Broker) heartbeat(ctx context.Context, m *membership) error {
	key := membersKey(m.group)
	now := time.Now()
	pipe := b.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMilli()), Member: b.cfg.Consumer})
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(now.Add(-b.cfg.LeaseTTL).UnixMilli(), 10))
	card := pipe.ZCard(ctx, key)
	pipe.PExpire(ctx, key, 2*b.cfg.LeaseTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	m.members.Store(card.Val())
	return nil
}

func (b *Broker) keepHeartbeat(ctx context.Context, m *membership) {
	ticker := time.NewTicker(b.cfg.renewEvery())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := b.heartbeat(ctx, m); err != nil && ctx.Err() == nil {
				b.logger.WarnContext(ctx, "Group heartbeat failed", "group", m.group, "error", err)
			}
		}
	}
}

func (b *Broker) leave(m *membership) {
	if b.isClosed() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = b.client.ZRem(ctx, membersKey(m.group), b.cfg.Consumer).Err()
}

func (b *Broker) ensureGroup(ctx context.Context, stream, groupID string) error {
	err := b.client.XGroupCreateMkStream(ctx, stream, groupID, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create group %s on %s: %w", groupID, stream, err)
	}
	return nil
}

func (b *Broker) read(ctx context.Context, groupID, stream string, pending bool) ([]redis.XMessage, error) {
	id, block := newEntries, b.cfg.Block
	if pending {
		// a negative Block omits BLOCK, pending reads return immediately
		id, block = pendingEntries, -1
	}

	streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    groupID,
		Consumer: b.cfg.Consumer,
		Streams:  []string{stream, id},
		Count:    b.cfg.Batch,
		Block:    block,
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(streams) == 0 {
		return nil, nil
	}
	return streams[0].Messages, nil
}

// handle runs handler on every entry in order and stops at the first
// failure. It returns how many entries were handled.
func (b *Broker) handle(ctx context.Context, s shard, groupID string, entries []redis.XMessage, handler eventbus.RawHandler) (int, error) {
	handled := 0
	for _, entry := range entries {
		msg := toMessage(s.topic, s.index, entry)
		if err := handler(ctx, msg); err != nil {
			return handled, fmt.Errorf("handle %s/%s: %w", s.name, entry.ID, err)
		}
		if err := b.client.XAck(ctx, s.name, groupID, entry.ID).Err(); err != nil {
			return handled, fmt.Errorf("ack %s/%s: %w", s.name, entry.ID, err)
		}
		handled++
	}
	return handled, nil
}

func (b *Broker) wait(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// Close stops every Consume loop and closes the client.
func (b *Broker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.done)
	b.mu.Unlock()

	return b.client.Close()
}

func (b *Broker) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *Broker) shardOf(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(b.cfg.Shards))
}

func shardStream(topic string, index int) string {
	return topic + ":" + strconv.Itoa(index)
}

func leaseKey(groupID, stream string) string {
	return "orderflow:lease:" + groupID + ":" + stream
}

func membersKey(groupID string) string {
	return "orderflow:members:" + groupID
}

func toMessage(topic string, index int, entry redis.XMessage) eventbus.Message {
	msg := eventbus.Message{Topic: topic, Partition: index, Offset: entryOffset(entry.ID)}
	if key, ok := entry.Values[fieldKey].(string); ok {
		msg.Key = key
	}
	if value, ok := entry.Values[fieldValue].(string); ok {
		msg.Value = []byte(value)
	}
	return msg
}

// entryOffset returns the millisecond part of a stream entry id.
func entryOffset(id string) int64 {
	ms, _, _ := strings.Cut(id, "-")
	n, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return -1
	}
	return n
}
