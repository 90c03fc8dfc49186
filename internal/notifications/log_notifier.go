package notifications

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

// LogNotifier stands in for the real mail provider. The env knobs let the
// failure paths be exercised without an actual outage.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier { return &LogNotifier{} }

func (n *LogNotifier) SendWelcome(ctx context.Context, in SendWelcomeInput) error {
	if err := simulateProvider(ctx); err != nil {
		return err
	}

	log.Printf("notification.welcome email=%s subject=%q body=%q",
		in.Email, "Thanks for joining in!",
		fmt.Sprintf("Welcome to the app, %s. Let me know how you get along with it.", in.Name),
	)
	return nil
}

func (n *LogNotifier) SendFarewell(ctx context.Context, in SendFarewellInput) error {
	if err := simulateProvider(ctx); err != nil {
		return err
	}

	log.Printf("notification.farewell email=%s subject=%q body=%q",
		in.Email, "Sorry to see you go",
		fmt.Sprintf("We will miss you, %s. Let me know what made you delete your account.", in.Name),
	)
	return nil
}

func simulateProvider(ctx context.Context) error {
	// Optional: simulate slow provider
	if msStr := os.Getenv("NOTIFIER_SLEEP_MS"); msStr != "" {
		ms, _ := strconv.Atoi(msStr)
		if ms > 0 {
			select {
			case <-time.After(time.Duration(ms) * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	// Optional: simulate provider outage
	if os.Getenv("NOTIFIER_FAIL") == "1" {
		return fmt.Errorf("provider down (simulated)")
	}

	return nil
}
