package keeperlock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
	extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// Redis is a cross-process Locker built on SET NX PX. Keys are Prefix
// followed by the identity. A watchdog extends the key while the holder
// works and cancels the held context if the key is gone; release only
// deletes the holder's own token.
type Redis struct {
	Client       redis.UniversalClient
	Prefix       string
	TTL          time.Duration
	PollInterval time.Duration
	// ExtendEvery defaults to a third of TTL.
	ExtendEvery time.Duration
	Logger      *zap.Logger
}

func NewRedis(client redis.UniversalClient, prefix string, ttl time.Duration, logger *zap.Logger) *Redis {
	return &Redis{Client: client, Prefix: prefix, TTL: ttl, Logger: logger}
}

func (r *Redis) Acquire(ctx context.Context, identity string) (context.Context, func(), error) {
	ttl := r.TTL
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	poll := r.PollInterval
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	key := r.Prefix + identity
	token := uuid.NewString()

	for {
		ok, err := r.Client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return ctx, nil, err
		}
		if ok {
			break
		}
		t := time.NewTimer(poll)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx, nil, ctx.Err()
		case <-t.C:
		}
	}

	held, cancel := context.WithCancelCause(ctx)
	stop := make(chan struct{})
	done := make(chan struct{})
	go r.watchdog(key, token, ttl, cancel, stop, done)

	var once sync.Once
	return held, func() {
		once.Do(func() {
			close(stop)
			<-done
			cancel(nil)
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(rctx, r.Client, []string{key}, token).Err(); err != nil {
				r.logger().Warn("release identity lock failed", zap.String("key", key), zap.Error(err))
			}
		})
	}, nil
}

func (r *Redis) watchdog(key, token string, ttl time.Duration, lost context.CancelCauseFunc, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	every := r.ExtendEvery
	if every <= 0 {
		every = ttl / 3
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), every)
			n, err := extendScript.Run(ctx, r.Client, []string{key}, token, ttl.Milliseconds()).Int()
			cancel()
			if err != nil {
				r.logger().Warn("extend identity lock failed", zap.String("key", key), zap.Error(err))
				continue
			}
			if n == 0 {
				r.logger().Error("identity lock lost", zap.String("key", key), zap.Error(ErrLockLost))
				lost(ErrLockLost)
				return
			}
		}
	}
}

func (r *Redis) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}
