package credential

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// newAuthority starts a fake credential authority that issues credentials
// expiring at the given offset from now, counting exchanges.
func newAuthority(t *testing.T, validity time.Duration, count *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := count.Add(1)
		expires := time.Now().Add(validity).Unix()
		fmt.Fprintf(w, `{
			"credentials": {
				"token": "tok-%d",
				"tmpSecretId": "sid-%d",
				"tmpSecretKey": "key-%d"
			},
			"expiredTime": %d,
			"expiration": "ignored",
			"requestId": "req-%d"
		}`, n, n, n, expires, n)
	}))
}

func testIdentity() (string, error) {
	return "user-1", nil
}

func TestToken_CachesWithinValidity(t *testing.T) {
	var count atomic.Int64
	server := newAuthority(t, time.Hour, &count)
	defer server.Close()

	p := NewProvider(server.URL, testIdentity)

	first, err := p.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}

	second, err := p.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}

	if first != second {
		t.Error("Token() returned a different credential within validity window")
	}
	if got := count.Load(); got != 1 {
		t.Errorf("authority exchanges = %d, want 1", got)
	}
}

func TestToken_RefreshesAfterExpiry(t *testing.T) {
	var count atomic.Int64
	// Credentials expire inside the refresh margin immediately.
	server := newAuthority(t, time.Minute, &count)
	defer server.Close()

	p := NewProvider(server.URL, testIdentity, WithRefreshMargin(5*time.Minute))

	first, err := p.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}

	second, err := p.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}

	if first.Token == second.Token {
		t.Error("Token() reused a credential past its refresh margin")
	}
	if got := count.Load(); got != 2 {
		t.Errorf("authority exchanges = %d, want 2", got)
	}
}

func TestToken_ConcurrentCallersShareExchange(t *testing.T) {
	var count atomic.Int64
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count.Add(1)
		time.Sleep(50 * time.Millisecond)
		expires := time.Now().Add(time.Hour).Unix()
		fmt.Fprintf(w, `{"credentials":{"token":"tok","tmpSecretId":"sid","tmpSecretKey":"key"},"expiredTime":%d}`, expires)
	}))
	defer slow.Close()

	p := NewProvider(slow.URL, testIdentity)

	const callers = 10
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = p.Token(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("caller %d: Token() error = %v", i, err)
		}
	}
	if got := count.Load(); got != 1 {
		t.Errorf("authority exchanges = %d, want 1 (singleflight)", got)
	}
}

func TestToken_RefreshDetachedFromCallerCancellation(t *testing.T) {
	var count atomic.Int64
	server := newAuthority(t, time.Hour, &count)
	defer server.Close()

	p := NewProvider(server.URL, testIdentity)

	// The refresh result is shared across the flight, so one caller's
	// cancellation must not poison it for everyone who joined.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cred, err := p.Token(ctx)
	if err != nil {
		t.Fatalf("Token() error = %v, want refresh to outlive the caller's context", err)
	}
	if cred.Token == "" {
		t.Error("Token() returned empty credential")
	}

	// A joiner arriving after the winner cancelled still sees the cache.
	if _, err := p.Token(context.Background()); err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if got := count.Load(); got != 1 {
		t.Errorf("authority exchanges = %d, want 1", got)
	}
}

func TestToken_NoIdentity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("authority should not be called without identity")
	}))
	defer server.Close()

	p := NewProvider(server.URL, func() (string, error) { return "", nil })

	_, err := p.Token(context.Background())
	if !errors.Is(err, ErrNoIdentity) {
		t.Errorf("Token() error = %v, want ErrNoIdentity", err)
	}
}

func TestToken_ExchangeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	p := NewProvider(server.URL, testIdentity)

	_, err := p.Token(context.Background())
	if !errors.Is(err, ErrExchangeFailed) {
		t.Errorf("Token() error = %v, want ErrExchangeFailed", err)
	}
}

func TestToken_IncompleteResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"credentials":{"token":""},"expiredTime":0,"requestId":"req-1"}`)
	}))
	defer server.Close()

	p := NewProvider(server.URL, testIdentity)

	_, err := p.Token(context.Background())
	if !errors.Is(err, ErrExchangeFailed) {
		t.Errorf("Token() error = %v, want ErrExchangeFailed", err)
	}
}

func TestExpiringSoonAndClear(t *testing.T) {
	var count atomic.Int64
	server := newAuthority(t, time.Hour, &count)
	defer server.Close()

	p := NewProvider(server.URL, testIdentity)

	if !p.ExpiringSoon() {
		t.Error("ExpiringSoon() = false before any credential, want true")
	}

	if _, err := p.Token(context.Background()); err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if p.ExpiringSoon() {
		t.Error("ExpiringSoon() = true for a fresh credential, want false")
	}

	p.Clear()
	if !p.ExpiringSoon() {
		t.Error("ExpiringSoon() = false after Clear(), want true")
	}

	if _, err := p.Token(context.Background()); err != nil {
		t.Fatalf("Token() after Clear() error = %v", err)
	}
	if got := count.Load(); got != 2 {
		t.Errorf("authority exchanges = %d, want 2 after Clear()", got)
	}
}

func TestValidFor(t *testing.T) {
	tests := []struct {
		name   string
		cred   *Credential
		margin time.Duration
		want   bool
	}{
		{"nil credential", nil, 0, false},
		{"fresh", &Credential{ExpiresAt: time.Now().Add(time.Hour)}, 5 * time.Minute, true},
		{"inside margin", &Credential{ExpiresAt: time.Now().Add(time.Minute)}, 5 * time.Minute, false},
		{"expired", &Credential{ExpiresAt: time.Now().Add(-time.Minute)}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cred.ValidFor(tt.margin); got != tt.want {
				t.Errorf("ValidFor(%v) = %v, want %v", tt.margin, got, tt.want)
			}
		})
	}
}
