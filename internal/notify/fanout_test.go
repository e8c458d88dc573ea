package notify

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"access-workflow/internal/common/errors"
	"access-workflow/internal/common/logger"
	"access-workflow/internal/directory"
	"access-workflow/internal/models"
	"access-workflow/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Doubles
// ==========================

type fakeSender struct {
	channel models.Channel
	send    func(ctx context.Context, addr Address, msg Message) (*Receipt, error)

	mu    sync.Mutex
	calls []Message
}

func (f *fakeSender) Channel() models.Channel { return f.channel }

func (f *fakeSender) Send(ctx context.Context, addr Address, msg Message) (*Receipt, error) {
	f.mu.Lock()
	f.calls = append(f.calls, msg)
	f.mu.Unlock()
	if f.send == nil {
		return &Receipt{Provider: "fake", Delivered: 1}, nil
	}
	return f.send(ctx, addr, msg)
}

func (f *fakeSender) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type captureRecorder struct {
	mu       sync.Mutex
	attempts []models.DeliveryAttempt
}

func (c *captureRecorder) Record(_ context.Context, a models.DeliveryAttempt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts = append(c.attempts, a)
}

func (c *captureRecorder) byChannel() map[models.Channel]models.DeliveryAttempt {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[models.Channel]models.DeliveryAttempt, len(c.attempts))
	for _, a := range c.attempts {
		out[a.Channel] = a
	}
	return out
}

type failingNotificationStore struct {
	store.NotificationStore
}

func (failingNotificationStore) Insert(context.Context, *models.Notification) error {
	return fmt.Errorf("connection refused")
}

type failingDirectory struct{}

func (failingDirectory) GetUser(context.Context, string) (*models.User, error) {
	return nil, errors.NewStoreFailureError("get user", fmt.Errorf("connection reset"))
}

type fanoutFixture struct {
	fanout   *Fanout
	store    *store.MemoryNotificationStore
	push     *fakeSender
	email    *fakeSender
	recorder *captureRecorder
}

func reachableUser() *models.User {
	return &models.User{
		ID:          "u-2",
		DisplayName: "Bo",
		Email:       "bo@example.com",
		PushTokens:  []string{"arn:a"},
		Preferences: models.UserPreferences{PushEnabled: true, EmailEnabled: true},
	}
}

func newFanoutFixture(t *testing.T, user *models.User, timeout time.Duration) *fanoutFixture {
	t.Helper()
	f := &fanoutFixture{
		store:    store.NewMemoryNotificationStore(),
		push:     &fakeSender{channel: models.ChannelPush},
		email:    &fakeSender{channel: models.ChannelEmail},
		recorder: &captureRecorder{},
	}
	dir := directory.StaticDirectory{}
	if user != nil {
		dir[user.ID] = user
	}
	f.fanout = NewFanout(f.store, dir, FanoutOptions{
		Routes: []Route{
			{Sender: f.push, Timeout: timeout},
			{Sender: f.email, Timeout: timeout},
		},
		Recorder: f.recorder,
		NewID:    func() string { return "n-1" },
	}, logger.NewTestLogger(t))
	t.Cleanup(f.fanout.Wait)
	return f
}

func createdPayload() models.Payload {
	return models.RequestCreatedPayload{RequestID: "r-1", RequesterID: "u-1", RequesterName: "Ann"}
}

// ==========================
// Tests
// ==========================

func TestFanout_Notify_AllChannels(t *testing.T) {
	f := newFanoutFixture(t, reachableUser(), time.Second)

	id, err := f.fanout.Notify(context.Background(), "u-2", createdPayload())
	require.NoError(t, err)
	assert.Equal(t, "n-1", id)
	f.fanout.Wait()

	n, err := f.store.Get(context.Background(), "n-1")
	require.NoError(t, err)
	assert.Equal(t, models.NotificationRequestCreated, n.Type)
	assert.Equal(t, "New access request", n.Title)
	assert.False(t, n.Read)

	assert.Equal(t, 1, f.push.callCount())
	assert.Equal(t, 1, f.email.callCount())

	attempts := f.recorder.byChannel()
	require.Len(t, attempts, 2)
	for _, a := range attempts {
		assert.Equal(t, models.DeliverySuccess, a.Outcome)
		assert.Equal(t, "n-1", a.NotificationID)
		assert.Equal(t, "u-2", a.UserID)
	}
}

func TestFanout_Notify_ChannelFailureIsIsolated(t *testing.T) {
	f := newFanoutFixture(t, reachableUser(), time.Second)
	f.push.send = func(context.Context, Address, Message) (*Receipt, error) {
		return &Receipt{Provider: "sns", Failed: 1}, errors.NewChannelDeliveryError("push", fmt.Errorf("endpoint disabled"))
	}

	id, err := f.fanout.Notify(context.Background(), "u-2", createdPayload())
	require.NoError(t, err)
	assert.Equal(t, "n-1", id)
	f.fanout.Wait()

	attempts := f.recorder.byChannel()
	assert.Equal(t, models.DeliveryFailure, attempts[models.ChannelPush].Outcome)
	assert.Contains(t, attempts[models.ChannelPush].Error, "push")
	assert.Equal(t, "CHANNEL_DELIVERY_FAILED", attempts[models.ChannelPush].Detail["errorCode"])
	assert.Equal(t, 1, attempts[models.ChannelPush].Detail["failed"])
	assert.Equal(t, models.DeliverySuccess, attempts[models.ChannelEmail].Outcome)
}

func TestFanout_Notify_PanicIsRecovered(t *testing.T) {
	f := newFanoutFixture(t, reachableUser(), time.Second)
	f.email.send = func(context.Context, Address, Message) (*Receipt, error) {
		panic("template exploded")
	}

	id, err := f.fanout.Notify(context.Background(), "u-2", createdPayload())
	require.NoError(t, err)
	assert.Equal(t, "n-1", id)
	f.fanout.Wait()

	attempts := f.recorder.byChannel()
	assert.Equal(t, models.DeliveryFailure, attempts[models.ChannelEmail].Outcome)
	assert.Contains(t, attempts[models.ChannelEmail].Error, "CHANNEL_DELIVERY_FAILED")
	assert.Equal(t, models.DeliverySuccess, attempts[models.ChannelPush].Outcome)
}

func TestFanout_Notify_SlowChannelTimesOut(t *testing.T) {
	f := newFanoutFixture(t, reachableUser(), 50*time.Millisecond)
	f.push.send = func(ctx context.Context, _ Address, _ Message) (*Receipt, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	start := time.Now()
	id, err := f.fanout.Notify(context.Background(), "u-2", createdPayload())
	require.NoError(t, err)
	assert.Equal(t, "n-1", id)
	f.fanout.Wait()
	assert.Less(t, time.Since(start), 2*time.Second)

	push := f.recorder.byChannel()[models.ChannelPush]
	assert.Equal(t, models.DeliveryFailure, push.Outcome)
	assert.Equal(t, "50ms", push.Detail["timeout"])
}

func TestFanout_Notify_SenderIgnoringContextIsAbandoned(t *testing.T) {
	f := newFanoutFixture(t, reachableUser(), 50*time.Millisecond)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	f.push.send = func(context.Context, Address, Message) (*Receipt, error) {
		<-release
		return &Receipt{Provider: "sns", Delivered: 1}, nil
	}

	start := time.Now()
	_, err := f.fanout.Notify(context.Background(), "u-2", createdPayload())
	require.NoError(t, err)
	f.fanout.Wait()
	assert.Less(t, time.Since(start), time.Second)

	attempts := f.recorder.byChannel()
	push := attempts[models.ChannelPush]
	assert.Equal(t, models.DeliveryFailure, push.Outcome)
	assert.Equal(t, "50ms", push.Detail["timeout"])
	assert.Equal(t, "CHANNEL_DELIVERY_FAILED", push.Detail["errorCode"])
	assert.Equal(t, models.DeliverySuccess, attempts[models.ChannelEmail].Outcome)
}

func TestFanout_Notify_ReturnsBeforeChannelsFinish(t *testing.T) {
	f := newFanoutFixture(t, reachableUser(), 5*time.Second)
	release := make(chan struct{})
	f.email.send = func(ctx context.Context, _ Address, _ Message) (*Receipt, error) {
		select {
		case <-release:
			return &Receipt{Provider: "ses", Delivered: 1}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	start := time.Now()
	id, err := f.fanout.Notify(context.Background(), "u-2", createdPayload())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)

	// the in-app record is durable before any channel completes
	_, err = f.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, f.recorder.byChannel())

	close(release)
	f.fanout.Wait()
	assert.Equal(t, models.DeliverySuccess, f.recorder.byChannel()[models.ChannelEmail].Outcome)
}

func TestFanout_Close(t *testing.T) {
	t.Run("drains in-flight deliveries", func(t *testing.T) {
		f := newFanoutFixture(t, reachableUser(), time.Second)
		f.push.send = func(context.Context, Address, Message) (*Receipt, error) {
			time.Sleep(20 * time.Millisecond)
			return &Receipt{Provider: "sns", Delivered: 1}, nil
		}

		_, err := f.fanout.Notify(context.Background(), "u-2", createdPayload())
		require.NoError(t, err)
		require.NoError(t, f.fanout.Close(context.Background()))
		assert.Len(t, f.recorder.byChannel(), 2)
	})

	t.Run("gives up when the context ends", func(t *testing.T) {
		f := newFanoutFixture(t, reachableUser(), 5*time.Second)
		release := make(chan struct{})
		defer close(release)
		f.push.send = func(context.Context, Address, Message) (*Receipt, error) {
			<-release
			return &Receipt{Provider: "sns", Delivered: 1}, nil
		}

		_, err := f.fanout.Notify(context.Background(), "u-2", createdPayload())
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, f.fanout.Close(ctx), context.DeadlineExceeded)
	})

	t.Run("keeps the in-app record after close", func(t *testing.T) {
		f := newFanoutFixture(t, reachableUser(), time.Second)
		require.NoError(t, f.fanout.Close(context.Background()))

		id, err := f.fanout.Notify(context.Background(), "u-2", createdPayload())
		require.NoError(t, err)
		_, err = f.store.Get(context.Background(), id)
		assert.NoError(t, err)
		assert.Equal(t, 0, f.push.callCount())
	})
}

func TestFanout_Notify_CallerCancellationDoesNotAbortSends(t *testing.T) {
	f := newFanoutFixture(t, reachableUser(), time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	f.push.send = func(sendCtx context.Context, _ Address, _ Message) (*Receipt, error) {
		cancel()
		select {
		case <-sendCtx.Done():
			return nil, sendCtx.Err()
		case <-time.After(20 * time.Millisecond):
			return &Receipt{Provider: "sns", Delivered: 1}, nil
		}
	}

	_, err := f.fanout.Notify(ctx, "u-2", createdPayload())
	require.NoError(t, err)
	f.fanout.Wait()
	assert.Equal(t, models.DeliverySuccess, f.recorder.byChannel()[models.ChannelPush].Outcome)
}

func TestFanout_Notify_PreferencesAndAddresses(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(u *models.User)
		wantPush  int
		wantEmail int
	}{
		{
			name:      "push disabled",
			mutate:    func(u *models.User) { u.Preferences.PushEnabled = false },
			wantPush:  0,
			wantEmail: 1,
		},
		{
			name:      "no push tokens",
			mutate:    func(u *models.User) { u.PushTokens = nil },
			wantPush:  0,
			wantEmail: 1,
		},
		{
			name:      "email disabled",
			mutate:    func(u *models.User) { u.Preferences.EmailEnabled = false },
			wantPush:  1,
			wantEmail: 0,
		},
		{
			name: "nothing enabled",
			mutate: func(u *models.User) {
				u.Preferences = models.UserPreferences{}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := reachableUser()
			tt.mutate(u)
			f := newFanoutFixture(t, u, time.Second)

			id, err := f.fanout.Notify(context.Background(), "u-2", createdPayload())
			require.NoError(t, err)
			assert.Equal(t, "n-1", id)
			f.fanout.Wait()
			assert.Equal(t, tt.wantPush, f.push.callCount())
			assert.Equal(t, tt.wantEmail, f.email.callCount())
		})
	}
}

func TestFanout_Notify_DirectoryFailureKeepsRecord(t *testing.T) {
	notifications := store.NewMemoryNotificationStore()
	push := &fakeSender{channel: models.ChannelPush}
	f := NewFanout(notifications, failingDirectory{}, FanoutOptions{
		Routes: []Route{{Sender: push}},
		NewID:  func() string { return "n-9" },
	}, logger.NewNoOpLogger())

	id, err := f.Notify(context.Background(), "u-2", createdPayload())
	require.NoError(t, err)
	assert.Equal(t, "n-9", id)
	f.Wait()
	assert.Equal(t, 0, push.callCount())

	_, err = notifications.Get(context.Background(), "n-9")
	assert.NoError(t, err)
}

func TestFanout_Notify_StoreFailureSendsNothing(t *testing.T) {
	push := &fakeSender{channel: models.ChannelPush}
	f := NewFanout(failingNotificationStore{}, directory.StaticDirectory{"u-2": reachableUser()},
		FanoutOptions{Routes: []Route{{Sender: push}}}, logger.NewNoOpLogger())

	id, err := f.Notify(context.Background(), "u-2", createdPayload())
	f.Wait()
	assert.Empty(t, id)
	assert.True(t, errors.HasCode(err, errors.ErrCodeStoreFailure))
	assert.Equal(t, 0, push.callCount())
}

func TestFanout_Notify_InvalidInput(t *testing.T) {
	f := newFanoutFixture(t, reachableUser(), time.Second)

	_, err := f.fanout.Notify(context.Background(), "", createdPayload())
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidArgument))

	_, err = f.fanout.Notify(context.Background(), "u-2", models.RequestRespondedPayload{Outcome: models.StatusPending})
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidArgument))

	list, err := f.store.ListByUser(context.Background(), "u-2", models.NotificationFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}
