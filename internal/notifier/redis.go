// Package notifier provides the pub/sub "nudge" used to re-drive a
// channel's deferred business-context answers (spec §7 `deferred`) and to
// wake a sibling process waiting on a completion handle across process
// boundaries.
package notifier

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

const redisChannelPrefix = "offchain:nudge:"

// ChannelKey identifies the pair channel a nudge is for, typically
// "selfAddr/peerAddr".
type ChannelKey string

// RedisNotifier is a distributed, Redis-backed notifier: PUBLISH/SUBSCRIBE
// broadcasts a nudge to every process holding a waiter for that channel,
// so a deferred business answer on one node can unblock a completion
// handle parked on another.
type RedisNotifier struct {
	client *redis.Client
	mu     sync.Mutex
	subs   map[ChannelKey][]*redisSub
	closed bool
}

type redisSub struct {
	ch     chan struct{}
	cancel context.CancelFunc
}

// NewRedisNotifier returns a notifier publishing through client.
func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{
		client: client,
		subs:   make(map[ChannelKey][]*redisSub),
	}
}

// Nudge publishes a wake signal for key. Every Subscribe(key) waiter on
// every process receives it.
func (n *RedisNotifier) Nudge(ctx context.Context, key ChannelKey) error {
	return n.client.Publish(ctx, redisChannelPrefix+string(key), "1").Err()
}

// Subscribe returns a channel that receives a value each time Nudge(key)
// is called anywhere, until ctx is cancelled or Close is called.
func (n *RedisNotifier) Subscribe(ctx context.Context, key ChannelKey) <-chan struct{} {
	ch := make(chan struct{}, 1)

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		close(ch)
		return ch
	}
	subCtx, cancel := context.WithCancel(ctx)
	rs := &redisSub{ch: ch, cancel: cancel}
	n.subs[key] = append(n.subs[key], rs)
	n.mu.Unlock()

	pubsub := n.client.Subscribe(subCtx, redisChannelPrefix+string(key))

	go func() {
		defer pubsub.Close()
		msgCh := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				n.removeSub(key, rs)
				return
			case _, ok := <-msgCh:
				if !ok {
					return
				}
				select {
				case ch <- struct{}{}:
				default:
				}
			}
		}
	}()

	return ch
}

// Close cancels every outstanding subscription and releases the notifier.
func (n *RedisNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	for _, subs := range n.subs {
		for _, s := range subs {
			s.cancel()
			close(s.ch)
		}
	}
	n.subs = nil
	return nil
}

func (n *RedisNotifier) removeSub(key ChannelKey, target *redisSub) {
	n.mu.Lock()
	defer n.mu.Unlock()
	subs := n.subs[key]
	for i, s := range subs {
		if s == target {
			n.subs[key] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}
