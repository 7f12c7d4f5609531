package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asturias-jnll/Capstone2-sub000/internal/models"
)

func TestRedisNotifier_Deliver(t *testing.T) {
	event := models.NotificationEvent{
		UserID:        "reviewer-1",
		BranchID:      3,
		Title:         "New Change Request CR-ABCD1234",
		Body:          "A change request is awaiting your review.",
		Category:      "change_request",
		ReferenceType: "change_request",
		ReferenceID:   "abcd1234-0000",
		Highlighted:   true,
		Priority:      "normal",
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	t.Run("pushes the event onto the configured list", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		mock.ExpectRPush("notification_events", payload).SetVal(1)

		notifier := NewRedisNotifier(client, "notification_events")
		assert.NoError(t, notifier.Deliver(context.Background(), event))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty queue name falls back to the default", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		mock.ExpectRPush(DefaultNotificationQueue, payload).SetVal(1)

		notifier := NewRedisNotifier(client, "")
		assert.NoError(t, notifier.Deliver(context.Background(), event))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("push failure surfaces to the caller", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		mock.ExpectRPush("notification_events", payload).SetErr(errors.New("connection refused"))

		notifier := NewRedisNotifier(client, "notification_events")
		assert.Error(t, notifier.Deliver(context.Background(), event))
	})
}

func TestNopNotifier(t *testing.T) {
	assert.NoError(t, NopNotifier{}.Deliver(context.Background(), models.NotificationEvent{}))
}

func TestRequestNumber(t *testing.T) {
	assert.Equal(t, "CR-ABCD1234", RequestNumber("abcd1234-ef56-7890"))
	assert.Equal(t, "CR-AB", RequestNumber("ab"))

	// Stable for a given id.
	assert.Equal(t, RequestNumber("abcd1234-ef56-7890"), RequestNumber("abcd1234-ef56-7890"))
}
