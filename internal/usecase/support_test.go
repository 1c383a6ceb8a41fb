package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/mallkit/passport/internal/core/domain"
	"github.com/mallkit/passport/internal/core/port"
	"github.com/mallkit/passport/internal/repository"
)

// fakeClock is a manually advanced clock shared between a service under
// test and its fake store, so TTL expiry can be simulated.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeItem struct {
	value     string
	expiresAt time.Time
}

// fakeStore is an in-memory CredentialStore honoring TTLs against the
// shared fake clock.
type fakeStore struct {
	mu    sync.Mutex
	clock *fakeClock
	items map[string]fakeItem
}

func newFakeStore(clock *fakeClock) *fakeStore {
	return &fakeStore{clock: clock, items: make(map[string]fakeItem)}
}

func (s *fakeStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := fakeItem{value: value}
	if ttl > 0 {
		item.expiresAt = s.clock.Now().Add(ttl)
	}
	s.items[key] = item
	return nil
}

func (s *fakeStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.live(key)
	if !ok {
		return "", false, nil
	}
	return item.value, true, nil
}

func (s *fakeStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)
	return nil
}

func (s *fakeStore) GetDelete(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.live(key)
	if !ok {
		return "", false, nil
	}
	delete(s.items, key)
	return item.value, true, nil
}

func (s *fakeStore) DeletePattern(_ context.Context, prefix string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for key := range s.items {
		if strings.HasPrefix(key, prefix) {
			delete(s.items, key)
			deleted++
		}
	}
	return deleted, nil
}

// live resolves a key, evicting it when expired. Callers hold the lock.
func (s *fakeStore) live(key string) (fakeItem, bool) {
	item, ok := s.items[key]
	if !ok {
		return fakeItem{}, false
	}
	if !item.expiresAt.IsZero() && !item.expiresAt.After(s.clock.Now()) {
		delete(s.items, key)
		return fakeItem{}, false
	}
	return item, true
}

var _ port.CredentialStore = (*fakeStore)(nil)

// fakeLookup serves a fixed principal set for one user type.
type fakeLookup struct {
	userType   domain.UserType
	principals map[string]*domain.Principal
	err        error
}

func (f *fakeLookup) Supports(userType domain.UserType) bool {
	return userType == f.userType
}

func (f *fakeLookup) LoadByIdentifier(_ context.Context, identifier string) (*domain.Principal, error) {
	if f.err != nil {
		return nil, f.err
	}
	principal, ok := f.principals[identifier]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *principal
	return &copied, nil
}

var _ port.UserLookupService = (*fakeLookup)(nil)

// fakeSender captures dispatched codes.
type fakeSender struct {
	mu    sync.Mutex
	sent  []string
	codes []string
	err   error
}

func (f *fakeSender) SendCode(_ context.Context, identifier, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, identifier)
	f.codes = append(f.codes, code)
	return nil
}

var _ port.NotificationSender = (*fakeSender)(nil)

// fakePublisher records published events.
type fakePublisher struct {
	mu        sync.Mutex
	loggedIn  []domain.UserLoggedInEvent
	oauthLoad []domain.OAuthUserLoadedEvent
}

func (f *fakePublisher) PublishUserLoggedIn(_ context.Context, event domain.UserLoggedInEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedIn = append(f.loggedIn, event)
	return nil
}

func (f *fakePublisher) PublishOAuthUserLoaded(_ context.Context, event domain.OAuthUserLoadedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.oauthLoad = append(f.oauthLoad, event)
	return nil
}

var _ port.EventPublisher = (*fakePublisher)(nil)

// fakeQrcodeProvider mints deterministic tickets.
type fakeQrcodeProvider struct {
	err error
}

func (f *fakeQrcodeProvider) CreateQrcode(_ context.Context, _ string, sceneID string, expireSeconds int) (*domain.QrcodeTicket, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.QrcodeTicket{
		SceneID:       sceneID,
		URL:           "https://qr.example.com/" + sceneID,
		Ticket:        "ticket-" + sceneID,
		ExpireSeconds: expireSeconds,
	}, nil
}

var _ port.QrcodeProvider = (*fakeQrcodeProvider)(nil)

// nopMetrics discards counters.
type nopMetrics struct{}

func (nopMetrics) LoginAttempt(string, string, string) {}
func (nopMetrics) CodeSent(string)                     {}
func (nopMetrics) QrcodePoll(string)                   {}

var _ port.MetricsSink = nopMetrics{}
