package sender

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/invopay/reminder-api/internal/model"
)

// ChannelSender delivers one reminder over one transport. Implementations
// own message formatting; the engine hands them only the invoice identity.
type ChannelSender interface {
	Send(ctx context.Context, invoiceID uuid.UUID) error
}

// Registry maps a channel to its sender.
type Registry map[model.Channel]ChannelSender

func (r Registry) For(channel model.Channel) (ChannelSender, error) {
	snd, ok := r[channel]
	if !ok {
		return nil, fmt.Errorf("no sender registered for channel %s", channel)
	}
	return snd, nil
}
