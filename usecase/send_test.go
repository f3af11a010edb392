package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainMessage "github.com/staykit/staywap/domains/message"
	pkgError "github.com/staykit/staywap/pkg/error"
)

func TestSendTextDeliversImmediately(t *testing.T) {
	f := newFixture(t)
	h := f.createHotel(t, "h1")
	ctx := context.Background()

	resp, err := f.send.SendText(ctx, domainMessage.SendTextRequest{
		HotelID: h.ID,
		Phone:   "34600111222",
		Message: "Your room is ready",
	})
	require.NoError(t, err)

	assert.Equal(t, domainMessage.QueueSent, resp.Status)
	assert.Equal(t, "abc123", resp.GatewayMessageID)
	assert.Equal(t, int32(1), f.gateway.Hits())

	item, err := f.queue.GetByID(ctx, resp.QueueID)
	require.NoError(t, err)
	assert.Equal(t, domainMessage.QueueSent, item.Status)
	assert.Equal(t, "abc123", item.GatewayMessageID)
	assert.Equal(t, 0, item.RetryCount)
	require.NotNil(t, item.SentAt)

	msg, err := f.messages.GetByID(ctx, resp.MessageID)
	require.NoError(t, err)
	assert.Equal(t, "abc123", msg.GatewayMessageID)
	assert.Equal(t, domainMessage.DeliverySent, msg.DeliveryStatus)

	// The send created the guest and conversation as a side effect, and the
	// delivery stamped the guest's last interaction.
	g, err := f.guests.GetByPhone(ctx, h.ID, "34600111222")
	require.NoError(t, err)
	require.NotNil(t, g.LastInteraction)
	_, err = f.conversations.GetActive(ctx, h.ID, g.ID)
	require.NoError(t, err)
}

func TestSendTextValidatesRequest(t *testing.T) {
	f := newFixture(t)
	f.createHotel(t, "h1")

	_, err := f.send.SendText(context.Background(), domainMessage.SendTextRequest{
		HotelID: "h1",
		Message: "no phone",
	})
	require.Error(t, err)
	_, isValidation := err.(pkgError.ValidationError)
	assert.True(t, isValidation)
	assert.Zero(t, f.gateway.Hits())
}

func TestSendFailureMarksFailedAndSchedulesRetry(t *testing.T) {
	f := newFixture(t)
	h := f.createHotel(t, "h1")
	f.gateway.SetFailing(true)
	ctx := context.Background()

	resp, err := f.send.SendText(ctx, domainMessage.SendTextRequest{
		HotelID: h.ID,
		Phone:   "34600111222",
		Message: "hi",
	})
	require.NoError(t, err, "a failed dispatch is not an API error")
	assert.Equal(t, domainMessage.QueueFailed, resp.Status)

	item, err := f.queue.GetByID(ctx, resp.QueueID)
	require.NoError(t, err)
	assert.Equal(t, domainMessage.QueueFailed, item.Status)
	assert.Equal(t, 1, item.RetryCount)
	assert.NotEmpty(t, item.ErrorMessage)

	jobs := f.sched.scheduled()
	require.Len(t, jobs, 1)
	assert.True(t, strings.HasPrefix(jobs[0].name, "queue-retry-"))
	assert.Equal(t, time.Minute, jobs[0].delay, "first retry waits one minute")
}

func TestScheduledRetryBackoffDoubles(t *testing.T) {
	f := newFixture(t)
	h := f.createHotel(t, "h1")
	f.gateway.SetFailing(true)
	ctx := context.Background()

	resp, err := f.send.SendText(ctx, domainMessage.SendTextRequest{
		HotelID: h.ID,
		Phone:   "34600111222",
		Message: "hi",
	})
	require.NoError(t, err)

	// Fire the first automatic retry; the gateway is still down.
	jobs := f.sched.scheduled()
	require.Len(t, jobs, 1)
	jobs[0].task()

	item, err := f.queue.GetByID(ctx, resp.QueueID)
	require.NoError(t, err)
	assert.Equal(t, 2, item.RetryCount)

	jobs = f.sched.scheduled()
	require.Len(t, jobs, 2)
	assert.Equal(t, 2*time.Minute, jobs[1].delay, "second retry doubles the wait")

	// Third failure exhausts the budget; no further job is booked.
	jobs[1].task()
	item, err = f.queue.GetByID(ctx, resp.QueueID)
	require.NoError(t, err)
	assert.Equal(t, 3, item.RetryCount)
	assert.Len(t, f.sched.scheduled(), 2)
}

func TestAutomaticRetrySucceedsAfterRecovery(t *testing.T) {
	f := newFixture(t)
	h := f.createHotel(t, "h1")
	f.gateway.SetFailing(true)
	ctx := context.Background()

	resp, err := f.send.SendText(ctx, domainMessage.SendTextRequest{
		HotelID: h.ID,
		Phone:   "34600111222",
		Message: "hi",
	})
	require.NoError(t, err)

	f.gateway.SetFailing(false)
	jobs := f.sched.scheduled()
	require.Len(t, jobs, 1)
	jobs[0].task()

	item, err := f.queue.GetByID(ctx, resp.QueueID)
	require.NoError(t, err)
	assert.Equal(t, domainMessage.QueueSent, item.Status)
	assert.Equal(t, "abc123", item.GatewayMessageID)
	assert.Equal(t, 1, item.RetryCount, "success never resets the historical count")
}

func TestRetryFailedRejectsNonFailedItems(t *testing.T) {
	f := newFixture(t)
	h := f.createHotel(t, "h1")
	ctx := context.Background()

	resp, err := f.send.SendText(ctx, domainMessage.SendTextRequest{
		HotelID: h.ID,
		Phone:   "34600111222",
		Message: "hi",
	})
	require.NoError(t, err)

	_, err = f.send.RetryFailed(ctx, resp.QueueID)
	require.Error(t, err, "a sent item cannot be retried")

	_, err = f.send.RetryFailed(ctx, "missing")
	require.ErrorIs(t, err, domainMessage.ErrQueueItemNotFound)
}

func TestScheduledSendIsNotDispatchedImmediately(t *testing.T) {
	f := newFixture(t)
	h := f.createHotel(t, "h1")
	ctx := context.Background()

	at := time.Now().Add(time.Hour)
	resp, err := f.send.SendText(ctx, domainMessage.SendTextRequest{
		HotelID:    h.ID,
		Phone:      "34600111222",
		Message:    "see you at checkout",
		ScheduleAt: &at,
	})
	require.NoError(t, err)

	assert.Equal(t, domainMessage.QueueScheduled, resp.Status)
	assert.Zero(t, f.gateway.Hits(), "scheduled sends wait for the sweep")
}

func TestDispatchDueScheduledSendsDueItems(t *testing.T) {
	f := newFixture(t)
	h := f.createHotel(t, "h1")
	ctx := context.Background()

	msg := &domainMessage.Message{
		HotelID:        h.ID,
		ConversationID: "c1",
		Direction:      domainMessage.DirectionOutgoing,
		Type:           domainMessage.TypeText,
		Content:        "due now",
	}
	require.NoError(t, f.messages.Create(ctx, msg))

	past := time.Now().UTC().Add(-time.Minute)
	item := &domainMessage.QueueItem{
		HotelID:     h.ID,
		GuestID:     "g1",
		MessageID:   msg.ID,
		Phone:       "34600111222",
		Status:      domainMessage.QueueScheduled,
		ScheduledAt: &past,
		Content:     "due now",
	}
	require.NoError(t, f.queue.Create(ctx, item))

	dispatched := f.send.DispatchDueScheduled(ctx)
	assert.Equal(t, 1, dispatched)

	got, err := f.queue.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, domainMessage.QueueSent, got.Status)
	assert.Equal(t, "abc123", got.GatewayMessageID)
}

func TestSendToDisabledHotelRejected(t *testing.T) {
	f := newFixture(t)
	h := f.createHotel(t, "h1")
	require.NoError(t, f.hotels.UpdateSettings(context.Background(), h.ID, h.Settings))

	// Disable directly through the model.
	require.NoError(t, f.db.Exec("UPDATE hotels SET enabled = ? WHERE id = ?", false, h.ID).Error)

	_, err := f.send.SendText(context.Background(), domainMessage.SendTextRequest{
		HotelID: h.ID,
		Phone:   "34600111222",
		Message: "hi",
	})
	require.Error(t, err)
	assert.Zero(t, f.gateway.Hits())
}
