package session

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"tasksync/internal/remote"
)

var (
	ErrMissingCredentials  = errors.New("missing sync credentials")
	ErrConnectionFailed    = errors.New("connection to sync server failed")
	ErrCalendarProbeFailed = errors.New("listing remote calendars failed")
)

const DefaultBackoff = 2 * time.Second

// Credentials is the settings store the manager reads from. Unset values are
// returned as empty strings.
type Credentials interface {
	URL() string
	Username() string
	Secret(provider string) string
}

// Toaster shows a short message to the user.
type Toaster interface {
	Toast(msg string)
}

// Manager establishes and caches the session used by sync runs.
type Manager struct {
	Provider string
	// Silent suppresses toasts, used for connection tests and headless runs.
	Silent  bool
	Backoff time.Duration

	service remote.Service
	creds   Credentials
	toaster Toaster

	mu      sync.Mutex
	session remote.Session
}

func NewManager(service remote.Service, creds Credentials, toaster Toaster) *Manager {
	return &Manager{
		Provider: "CalDAV",
		Backoff:  DefaultBackoff,
		service:  service,
		creds:    creds,
		toaster:  toaster,
	}
}

// Establish opens a new session and returns it together with the task
// capable calendars of the principal.
func (m *Manager) Establish(ctx context.Context) (remote.Session, []remote.Calendar, error) {
	log.Debug().Str("provider", m.Provider).Msg("checking credentials")
	url := m.creds.URL()
	user := m.creds.Username()
	secret := m.creds.Secret(m.Provider)
	if url == "" || user == "" || secret == "" {
		log.Error().Str("provider", m.Provider).Msg("not all credentials provided")
		m.toast("Not all sync credentials provided. Please check settings.")
		return nil, nil, ErrMissingCredentials
	}

	log.Debug().Str("url", url).Msg("attempting connection")
	session, err := m.service.Connect(ctx, remote.Credentials{
		URL:                url,
		Username:           user,
		Secret:             secret,
		InsecureSkipVerify: true,
	})
	var cals []remote.Calendar
	if err == nil {
		cals, err = session.Calendars(ctx)
	}
	if err != nil {
		m.wait(ctx)
		log.Err(err).Str("provider", m.Provider).Str("url", url).Msg("can't connect to sync server")
		m.toast("Can't connect to CalDAV server at: " + url)
		return nil, nil, errors.Wrap(ErrConnectionFailed, err.Error())
	}
	log.Info().Str("provider", m.Provider).Str("url", url).Msg("connected to sync server")

	m.mu.Lock()
	m.session = session
	m.mu.Unlock()
	return session, remote.TaskCalendars(cals), nil
}

// Session returns the cached session, establishing one when needed.
func (m *Manager) Session(ctx context.Context) (remote.Session, error) {
	m.mu.Lock()
	s := m.session
	m.mu.Unlock()
	if s != nil {
		return s, nil
	}
	s, _, err := m.Establish(ctx)
	return s, err
}

// Calendars re-probes the task capable calendars of the cached session. A
// failed probe drops the session so that the next run reconnects.
func (m *Manager) Calendars(ctx context.Context) ([]remote.Calendar, error) {
	s, err := m.Session(ctx)
	if err != nil {
		return nil, err
	}
	cals, err := s.Calendars(ctx)
	if err != nil {
		log.Err(err).Msg("can't get calendars from remote")
		m.Reset()
		return nil, errors.Wrap(ErrCalendarProbeFailed, err.Error())
	}
	return remote.TaskCalendars(cals), nil
}

// Reset drops the cached session.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.session = nil
	m.mu.Unlock()
}

func (m *Manager) toast(msg string) {
	if m.Silent || m.toaster == nil {
		return
	}
	m.toaster.Toast(msg)
}

func (m *Manager) wait(ctx context.Context) {
	if m.Backoff <= 0 {
		return
	}
	t := time.NewTimer(m.Backoff)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
