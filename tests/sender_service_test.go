// Package tests contains test cases for models and repository packages to avoid circular imports
package tests

import (
	"context"
	"testing"
	"time"

	"github.com/wahelp/mailing-engine/app/services"
	"github.com/wahelp/mailing-engine/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessageSender(t *testing.T) {
	t.Run("NilConfigFallsBackToMock", func(t *testing.T) {
		sender := services.NewMessageSender(nil)
		_, ok := sender.(*services.MockMessageSender)
		assert.True(t, ok)
	})

	t.Run("MockProvider", func(t *testing.T) {
		sender := services.NewMessageSender(&config.SenderConfig{Provider: "mock"})
		_, ok := sender.(*services.MockMessageSender)
		assert.True(t, ok)
	})

	t.Run("WebhookProvider", func(t *testing.T) {
		sender := services.NewMessageSender(&config.SenderConfig{
			Provider:       "webhook",
			ProviderDomain: "provider.example.com",
			APIKey:         "key",
			Timeout:        5 * time.Second,
		})
		_, ok := sender.(*services.MockMessageSender)
		assert.False(t, ok)
	})
}

func TestMockMessageSender(t *testing.T) {
	sender := services.NewMockMessageSender()
	ctx := context.Background()

	require.NoError(t, sender.Send(ctx, "+15550001111", "Hello", "World"))
	require.NoError(t, sender.Send(ctx, "+15550002222", "Hello", "Again"))

	assert.Equal(t, 2, sender.SentCount())
	assert.Equal(t, "+15550001111", sender.SentMessages[0].Recipient)
	assert.Equal(t, "Hello", sender.SentMessages[0].Title)
	assert.Equal(t, "World", sender.SentMessages[0].Text)
	assert.False(t, sender.SentMessages[0].SentAt.IsZero())
}
