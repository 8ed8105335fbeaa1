package guard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type memoryStore struct {
	mu       sync.Mutex
	counters map[string]int64
	incrErr  error
	getErr   error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{counters: map[string]int64{}}
}

func (s *memoryStore) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	if s.incrErr != nil {
		return 0, s.incrErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[key]++
	return s.counters[key], nil
}

func (s *memoryStore) Get(_ context.Context, key string) (int64, error) {
	if s.getErr != nil {
		return 0, s.getErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[key], nil
}

func TestPolicyFlagsBannedContent(t *testing.T) {
	policy := NewPolicy()

	if !policy.Violates("我的身份证号12345") {
		t.Fatalf("expected banned substring to violate policy")
	}
	if !policy.Violates("这是银行卡号6222...") {
		t.Fatalf("expected banned substring to violate policy")
	}
	if policy.Violates("今天天气怎么样") {
		t.Fatalf("expected ordinary text to pass policy")
	}
}

func TestPolicyExtraRulesExtendDefaults(t *testing.T) {
	policy := NewPolicy("绝密")
	if !policy.Violates("这是绝密文件") {
		t.Fatalf("expected extra rule to match")
	}
	if !policy.Violates("身份证号") {
		t.Fatalf("expected default rule to remain active")
	}
}

func TestNilPolicyNeverMatches(t *testing.T) {
	var policy *Policy
	if policy.Violates("身份证号") {
		t.Fatalf("expected nil policy to pass everything")
	}
}

func TestLimiterAdmitsUnderQuota(t *testing.T) {
	limiter := NewLimiter(newMemoryStore(), WithQuota(3, time.Minute))

	for i := range 3 {
		if err := limiter.Allow(context.Background(), "client-a"); err != nil {
			t.Fatalf("expected request %d admitted, got %v", i+1, err)
		}
	}
}

func TestLimiterRejectsOverQuota(t *testing.T) {
	fixed := time.Date(2026, 9, 1, 12, 0, 30, 0, time.UTC)
	limiter := NewLimiter(newMemoryStore(),
		WithQuota(2, time.Minute),
		withClock(func() time.Time { return fixed }),
	)

	_ = limiter.Allow(context.Background(), "client-a")
	_ = limiter.Allow(context.Background(), "client-a")
	err := limiter.Allow(context.Background(), "client-a")
	if !errors.Is(err, ErrTooManyRequests) {
		t.Fatalf("expected ErrTooManyRequests, got %v", err)
	}
}

func TestLimiterQuotaIsPerIdentity(t *testing.T) {
	fixed := time.Date(2026, 9, 1, 12, 0, 30, 0, time.UTC)
	limiter := NewLimiter(newMemoryStore(),
		WithQuota(1, time.Minute),
		withClock(func() time.Time { return fixed }),
	)

	_ = limiter.Allow(context.Background(), "client-a")
	if err := limiter.Allow(context.Background(), "client-b"); err != nil {
		t.Fatalf("expected independent identity admitted, got %v", err)
	}
}

func TestLimiterWeighsPreviousWindow(t *testing.T) {
	store := newMemoryStore()
	windowStart := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	// Fill the previous window, then probe 15s into the current one: the
	// previous count still weighs in at 75%.
	now := windowStart.Add(-time.Second)
	limiter := NewLimiter(store,
		WithQuota(4, time.Minute),
		withClock(func() time.Time { return now }),
	)
	for range 5 {
		_ = limiter.Allow(context.Background(), "client-a")
	}

	now = windowStart.Add(15 * time.Second)
	if err := limiter.Allow(context.Background(), "client-a"); !errors.Is(err, ErrTooManyRequests) {
		t.Fatalf("expected weighted previous window to reject, got %v", err)
	}

	// Near the end of the window the old bucket barely counts.
	now = windowStart.Add(59 * time.Second)
	if err := limiter.Allow(context.Background(), "client-a"); err != nil {
		t.Fatalf("expected faded previous window to admit, got %v", err)
	}
}

func TestLimiterFailsOpenOnBackendError(t *testing.T) {
	store := newMemoryStore()
	store.incrErr = errors.New("connection refused")
	limiter := NewLimiter(store, WithQuota(1, time.Minute))

	for i := range 5 {
		if err := limiter.Allow(context.Background(), "client-a"); err != nil {
			t.Fatalf("expected fail-open admission on attempt %d, got %v", i+1, err)
		}
	}
}

func TestLimiterWithoutStoreIsPassThrough(t *testing.T) {
	limiter := NewLimiter(nil)
	for i := range 100 {
		if err := limiter.Allow(context.Background(), "client-a"); err != nil {
			t.Fatalf("expected pass-through admission on attempt %d, got %v", i+1, err)
		}
	}

	var nilLimiter *Limiter
	if err := nilLimiter.Allow(context.Background(), "client-a"); err != nil {
		t.Fatalf("expected nil limiter to admit, got %v", err)
	}
}
