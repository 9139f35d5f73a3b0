package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// fakeList emulates a redis list for LPUSH/BRPOP.
type fakeList struct {
	mu      sync.Mutex
	items   map[string][]string
	pushErr error
}

func (f *fakeList) LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushErr != nil {
		return redis.NewIntResult(0, f.pushErr)
	}
	if f.items == nil {
		f.items = make(map[string][]string)
	}
	for _, v := range values {
		var s string
		switch val := v.(type) {
		case []byte:
			s = string(val)
		case string:
			s = val
		}
		f.items[key] = append([]string{s}, f.items[key]...)
	}
	return redis.NewIntResult(int64(len(f.items[key])), nil)
}

func (f *fakeList) BRPop(ctx context.Context, _ time.Duration, keys ...string) *redis.StringSliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return redis.NewStringSliceResult(nil, err)
	}
	for _, key := range keys {
		list := f.items[key]
		if len(list) == 0 {
			continue
		}
		last := list[len(list)-1]
		f.items[key] = list[:len(list)-1]
		return redis.NewStringSliceResult([]string{key, last}, nil)
	}
	return redis.NewStringSliceResult(nil, redis.Nil)
}

func (f *fakeList) len(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items[key])
}

type recordingSender struct {
	mu   sync.Mutex
	sent []Message
	fail map[string]bool
}

func (s *recordingSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[msg.CandidateID] {
		return errors.New("gateway rejected")
	}
	s.sent = append(s.sent, msg)
	return nil
}
