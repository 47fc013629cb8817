package session

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tasksync/internal/remote"
)

type staticCreds struct {
	url, user, secret string
}

func (c staticCreds) URL() string            { return c.url }
func (c staticCreds) Username() string       { return c.user }
func (c staticCreds) Secret(_ string) string { return c.secret }

type MockToaster struct {
	mock.Mock
}

func (m *MockToaster) Toast(msg string) {
	m.Called(msg)
}

var goodCreds = staticCreds{url: "https://dav.example.com", user: "me", secret: "pw"}

func newManager(svc remote.Service, creds Credentials, toaster Toaster) *Manager {
	m := NewManager(svc, creds, toaster)
	m.Backoff = 0
	return m
}

func TestEstablishFiltersTaskCalendars(t *testing.T) {
	svc := remote.NewMemory()
	svc.AddCalendar("L1", "Inbox", "VTODO")
	svc.AddCalendar("E1", "Events", "VEVENT")

	s, cals, err := newManager(svc, goodCreds, nil).Establish(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, s)
	require.Len(t, cals, 1)
	assert.Equal(t, "L1", cals[0].ID())
	assert.True(t, svc.LastCredentials.InsecureSkipVerify)
	assert.Equal(t, "pw", svc.LastCredentials.Secret)
}

func TestEstablishMissingCredentials(t *testing.T) {
	for _, creds := range []staticCreds{
		{user: "me", secret: "pw"},
		{url: "u", secret: "pw"},
		{url: "u", user: "me"},
	} {
		toaster := &MockToaster{}
		toaster.On("Toast", "Not all sync credentials provided. Please check settings.").Once()

		_, _, err := newManager(remote.NewMemory(), creds, toaster).Establish(context.Background())

		assert.True(t, errors.Is(err, ErrMissingCredentials))
		toaster.AssertExpectations(t)
	}
}

func TestEstablishSilentSuppressesToasts(t *testing.T) {
	toaster := &MockToaster{}
	m := newManager(remote.NewMemory(), staticCreds{}, toaster)
	m.Silent = true

	_, _, err := m.Establish(context.Background())

	assert.True(t, errors.Is(err, ErrMissingCredentials))
	toaster.AssertNotCalled(t, "Toast", mock.Anything)
}

func TestEstablishConnectionFailedWaitsBackoff(t *testing.T) {
	svc := remote.NewMemory()
	svc.FailOn(remote.OpConnect, "", errors.New("dial tcp: refused"))
	toaster := &MockToaster{}
	toaster.On("Toast", "Can't connect to CalDAV server at: https://dav.example.com").Once()

	m := newManager(svc, goodCreds, toaster)
	m.Backoff = 20 * time.Millisecond
	start := time.Now()
	_, _, err := m.Establish(context.Background())

	assert.True(t, errors.Is(err, ErrConnectionFailed))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	toaster.AssertExpectations(t)
}

func TestSessionIsCachedAndReset(t *testing.T) {
	svc := remote.NewMemory()
	svc.AddCalendar("L1", "Inbox")
	m := newManager(svc, goodCreds, nil)
	ctx := context.Background()

	s1, err := m.Session(ctx)
	require.NoError(t, err)

	// a cached session survives a later connect failure
	svc.FailOn(remote.OpConnect, "", errors.New("down"))
	s2, err := m.Session(ctx)
	require.NoError(t, err)
	assert.Same(t, s1.(*remote.Memory), s2.(*remote.Memory))

	svc.FailOn(remote.OpCalendars, "", errors.New("timeout"))
	_, err = m.Calendars(ctx)
	assert.True(t, errors.Is(err, ErrCalendarProbeFailed))

	// the failed probe dropped the session, reconnecting now fails
	_, err = m.Session(ctx)
	assert.True(t, errors.Is(err, ErrConnectionFailed))
}

func TestCalendarsProbe(t *testing.T) {
	svc := remote.NewMemory()
	m := newManager(svc, goodCreds, nil)
	ctx := context.Background()

	cals, err := m.Calendars(ctx)
	require.NoError(t, err)
	assert.Empty(t, cals)

	svc.AddCalendar("L1", "Inbox")
	cals, err = m.Calendars(ctx)
	require.NoError(t, err)
	assert.Len(t, cals, 1)
}
