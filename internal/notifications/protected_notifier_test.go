package notifications_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/userhub/userhub/internal/notifications"
)

type fakeNotifier struct {
	welcomeFn  func(ctx context.Context, input notifications.SendWelcomeInput) error
	farewellFn func(ctx context.Context, input notifications.SendFarewellInput) error
}

func (f *fakeNotifier) SendWelcome(ctx context.Context, input notifications.SendWelcomeInput) error {
	if f.welcomeFn != nil {
		return f.welcomeFn(ctx, input)
	}
	return nil
}

func (f *fakeNotifier) SendFarewell(ctx context.Context, input notifications.SendFarewellInput) error {
	if f.farewellFn != nil {
		return f.farewellFn(ctx, input)
	}
	return nil
}

func TestProtectedNotifierPassThrough(t *testing.T) {
	var calls int

	inner := &fakeNotifier{
		welcomeFn: func(ctx context.Context, input notifications.SendWelcomeInput) error {
			calls++
			return nil
		},
	}

	p := notifications.NewProtectedNotifier(inner, notifications.ProtectedNotifierConfig{})

	for i := 0; i < 5; i++ {
		if err := p.SendWelcome(context.Background(), notifications.SendWelcomeInput{Email: "ada@example.com"}); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}

	if calls != 5 {
		t.Fatalf("inner notifier called %d times, want 5", calls)
	}
}

func TestProtectedNotifierOpensAfterThreshold(t *testing.T) {
	boom := errors.New("smtp down")

	var calls int

	inner := &fakeNotifier{
		welcomeFn: func(ctx context.Context, input notifications.SendWelcomeInput) error {
			calls++
			return boom
		},
	}

	p := notifications.NewProtectedNotifier(inner, notifications.ProtectedNotifierConfig{
		FailureThreshold: 3,
		Cooldown:         time.Hour,
	})

	in := notifications.SendWelcomeInput{Email: "ada@example.com"}

	for i := 0; i < 3; i++ {
		if err := p.SendWelcome(context.Background(), in); !errors.Is(err, boom) {
			t.Fatalf("send %d: got %v, want inner error", i, err)
		}
	}

	// circuit is open now, inner must not be reached
	if err := p.SendWelcome(context.Background(), in); !errors.Is(err, notifications.ErrCircuitOpen) {
		t.Fatalf("got %v, want ErrCircuitOpen", err)
	}

	if calls != 3 {
		t.Fatalf("inner notifier called %d times after opening, want 3", calls)
	}
}

func TestProtectedNotifierRecoversAfterCooldown(t *testing.T) {
	boom := errors.New("smtp down")

	failing := true

	inner := &fakeNotifier{
		farewellFn: func(ctx context.Context, input notifications.SendFarewellInput) error {
			if failing {
				return boom
			}
			return nil
		},
	}

	p := notifications.NewProtectedNotifier(inner, notifications.ProtectedNotifierConfig{
		FailureThreshold: 1,
		Cooldown:         10 * time.Millisecond,
	})

	in := notifications.SendFarewellInput{Email: "ada@example.com"}

	if err := p.SendFarewell(context.Background(), in); !errors.Is(err, boom) {
		t.Fatalf("got %v, want inner error", err)
	}

	if err := p.SendFarewell(context.Background(), in); !errors.Is(err, notifications.ErrCircuitOpen) {
		t.Fatalf("got %v, want ErrCircuitOpen", err)
	}

	failing = false

	time.Sleep(20 * time.Millisecond)

	// half-open trial call goes through and closes the circuit again
	if err := p.SendFarewell(context.Background(), in); err != nil {
		t.Fatalf("half-open send: %v", err)
	}

	if err := p.SendFarewell(context.Background(), in); err != nil {
		t.Fatalf("closed send: %v", err)
	}
}

func TestProtectedNotifierTimeout(t *testing.T) {
	inner := &fakeNotifier{
		welcomeFn: func(ctx context.Context, input notifications.SendWelcomeInput) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}

	p := notifications.NewProtectedNotifier(inner, notifications.ProtectedNotifierConfig{
		Timeout: 10 * time.Millisecond,
	})

	start := time.Now()

	err := p.SendWelcome(context.Background(), notifications.SendWelcomeInput{Email: "ada@example.com"})
	if err == nil {
		t.Fatalf("expected a timeout error")
	}

	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("send blocked for %v, timeout not enforced", elapsed)
	}
}
