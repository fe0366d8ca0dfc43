package service

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/fluxpro/relay-server-go/internal/events"
	"github.com/fluxpro/relay-server-go/internal/model"
	"github.com/fluxpro/relay-server-go/internal/sse"
)

type mockAccountRepo struct {
	mock.Mock
}

func (m *mockAccountRepo) FindByID(ctx context.Context, accountID string) (*model.IntegratedAccount, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.IntegratedAccount), args.Error(1)
}

func (m *mockAccountRepo) FindByOwner(ctx context.Context, ownerID string) (*model.IntegratedAccount, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.IntegratedAccount), args.Error(1)
}

func (m *mockAccountRepo) FindMostRecent(ctx context.Context) (*model.IntegratedAccount, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.IntegratedAccount), args.Error(1)
}

func (m *mockAccountRepo) Upsert(ctx context.Context, params model.UpsertAccountParams) (*model.IntegratedAccount, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.IntegratedAccount), args.Error(1)
}

type mockSettingRepo struct {
	mock.Mock
}

func (m *mockSettingRepo) Get(ctx context.Context, key string) (*string, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*string), args.Error(1)
}

func (m *mockSettingRepo) Set(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

type mockProviderCredentialRepo struct {
	mock.Mock
}

func (m *mockProviderCredentialRepo) Find(ctx context.Context, ownerID, provider string) (*model.ProviderCredential, error) {
	args := m.Called(ctx, ownerID, provider)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ProviderCredential), args.Error(1)
}

func (m *mockProviderCredentialRepo) FindExpiring(ctx context.Context, provider string, before time.Time) ([]model.ProviderCredential, error) {
	args := m.Called(ctx, provider, before)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ProviderCredential), args.Error(1)
}

func (m *mockProviderCredentialRepo) Upsert(ctx context.Context, params model.UpsertProviderCredentialParams) (*model.ProviderCredential, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ProviderCredential), args.Error(1)
}

type mockPaymentRepo struct {
	mock.Mock
}

func (m *mockPaymentRepo) RecordEvent(ctx context.Context, event model.PaymentEvent) (bool, error) {
	args := m.Called(ctx, event)
	return args.Bool(0), args.Error(1)
}

func (m *mockPaymentRepo) FindSubscription(ctx context.Context, ownerID string) (*model.Subscription, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Subscription), args.Error(1)
}

func (m *mockPaymentRepo) UpsertSubscription(ctx context.Context, sub model.Subscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

type mockProfileFetcher struct {
	mock.Mock
}

func (m *mockProfileFetcher) GetProfile(ctx context.Context, psid, token string) (*GraphProfile, error) {
	args := m.Called(ctx, psid, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*GraphProfile), args.Error(1)
}

type mockMessageSender struct {
	mock.Mock
}

func (m *mockMessageSender) SendText(ctx context.Context, token, recipientID, text string) (*SendResult, error) {
	args := m.Called(ctx, token, recipientID, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SendResult), args.Error(1)
}

type mockAccountLister struct {
	mock.Mock
}

func (m *mockAccountLister) ListManagedAccounts(ctx context.Context, userToken string) ([]model.ManagedAccount, error) {
	args := m.Called(ctx, userToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ManagedAccount), args.Error(1)
}

// recordingNotifier captures emitted events per target.
type recordingNotifier struct {
	mu          sync.Mutex
	rooms       map[string][]sse.Event
	connections map[string][]sse.Event
	broadcasts  []sse.Event
	err         error
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{
		rooms:       make(map[string][]sse.Event),
		connections: make(map[string][]sse.Event),
	}
}

func (n *recordingNotifier) EmitToRoom(_ context.Context, ownerID string, event sse.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.rooms[ownerID] = append(n.rooms[ownerID], event)
	return nil
}

func (n *recordingNotifier) Broadcast(_ context.Context, event sse.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.broadcasts = append(n.broadcasts, event)
	return nil
}

func (n *recordingNotifier) EmitToConnection(_ context.Context, connectionID string, event sse.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.connections[connectionID] = append(n.connections[connectionID], event)
	return nil
}

// memoryDedup remembers message ids for the lifetime of a test.
type memoryDedup struct {
	seen map[string]bool
}

func (d *memoryDedup) Seen(_ context.Context, messageID string) bool {
	if d.seen == nil {
		d.seen = make(map[string]bool)
	}
	if d.seen[messageID] {
		return true
	}
	d.seen[messageID] = true
	return false
}

func (d *memoryDedup) Forget(_ context.Context, messageID string) {
	delete(d.seen, messageID)
}

type recordingPublisher struct {
	mu        sync.Mutex
	envelopes []events.Envelope
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, env events.Envelope) error {
	p.mu.Lock()
	p.envelopes = append(p.envelopes, env)
	p.mu.Unlock()
	return nil
}

func (p *recordingPublisher) Close() error { return nil }
