package notifications

import "context"

type SendWelcomeInput struct {
	Email string
	Name  string
}

type SendFarewellInput struct {
	Email string
	Name  string
}

type Notifier interface {
	SendWelcome(ctx context.Context, input SendWelcomeInput) error
	SendFarewell(ctx context.Context, input SendFarewellInput) error
}
