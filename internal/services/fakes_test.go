package services

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/kelsos/keeper-sync/internal/keeper"
	"github.com/kelsos/keeper-sync/internal/models"
	"github.com/kelsos/keeper-sync/internal/notify"
)

type mockNode struct {
	mock.Mock
}

func (m *mockNode) GetDappMeta(ctx context.Context, server, address string) (*models.MetaResponse, error) {
	args := m.Called(ctx, server, address)
	res, _ := args.Get(0).(*models.MetaResponse)
	return res, args.Error(1)
}

func (m *mockNode) GetBalances(ctx context.Context, server, address string) (*models.BalancesResponse, error) {
	args := m.Called(ctx, server, address)
	res, _ := args.Get(0).(*models.BalancesResponse)
	return res, args.Error(1)
}

func (m *mockNode) GetScriptInfo(ctx context.Context, server, address string) (*models.ScriptInfoResponse, error) {
	args := m.Called(ctx, server, address)
	res, _ := args.Get(0).(*models.ScriptInfoResponse)
	return res, args.Error(1)
}

type fakeKeeper struct {
	mu          sync.Mutex
	initErr     error
	state       *models.PublicState
	stateErr    error
	handlers    []keeper.UpdateHandler
	sent        []models.TransactionRequest
	signed      string
	sendErr     error
	unsubscribe int
}

func (f *fakeKeeper) Initialize(ctx context.Context) error {
	return f.initErr
}

func (f *fakeKeeper) PublicState(ctx context.Context) (*models.PublicState, error) {
	if f.stateErr != nil {
		return nil, f.stateErr
	}
	state := *f.state
	return &state, nil
}

func (f *fakeKeeper) OnUpdate(handler keeper.UpdateHandler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, handler)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.unsubscribe++
	}
}

func (f *fakeKeeper) SignAndPublishTransaction(ctx context.Context, tx models.TransactionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return f.signed, f.sendErr
}

func (f *fakeKeeper) emit(state models.PublicState) {
	f.mu.Lock()
	handlers := append([]keeper.UpdateHandler(nil), f.handlers...)
	f.mu.Unlock()
	for _, h := range handlers {
		h(state)
	}
}

func (f *fakeKeeper) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

func (f *fakeKeeper) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type recordingSink struct {
	mu            sync.Mutex
	notifications []notify.Notification
}

func (r *recordingSink) Notify(message string, opts notify.Options) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, notify.Notification{Message: message, Options: opts})
}

func (r *recordingSink) all() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Notification(nil), r.notifications...)
}

func (r *recordingSink) ofType(t notify.Type) []notify.Notification {
	var out []notify.Notification
	for _, n := range r.all() {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}
