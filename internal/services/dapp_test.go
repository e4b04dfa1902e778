package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kelsos/keeper-sync/internal/account"
	"github.com/kelsos/keeper-sync/internal/client"
	"github.com/kelsos/keeper-sync/internal/config"
	"github.com/kelsos/keeper-sync/internal/keeper"
	"github.com/kelsos/keeper-sync/internal/models"
	"github.com/kelsos/keeper-sync/internal/networks"
	"github.com/kelsos/keeper-sync/internal/notify"
)

type dappFixture struct {
	svc    *DappService
	keeper *KeeperService
	api    *fakeKeeper
	store  *account.Store
	sink   *recordingSink
}

func newDappFixture(t *testing.T, cfg *config.Config, node NodeClient) *dappFixture {
	t.Helper()
	store := account.NewStore()
	sink := &recordingSink{}
	api := &fakeKeeper{signed: `{"id":"8vQeBd3D9rTz","type":16}`}

	keeperService, _, _ := newKeeperService(cfg, nil, node)
	keeperService.store = store
	keeperService.notifier = sink
	keeperService.setAPI(api)

	svc, err := NewDappService(cfg, node, keeperService, store, networks.NewRegistry(), sink)
	require.NoError(t, err)

	return &dappFixture{svc: svc, keeper: keeperService, api: api, store: store, sink: sink}
}

func TestConvertArgsFiltersUndefinedAndKeepsOrder(t *testing.T) {
	f := newDappFixture(t, testConfig(), &mockNode{})

	args, err := f.svc.ConvertArgs([]models.ArgumentInput{
		{Name: "a", Type: "Int", Value: strPtr("1")},
		{Name: "b", Type: "String"},
		{Name: "c", Type: "Boolean", Value: strPtr("true")},
		{Name: "d", Type: "String", Value: strPtr("x")},
	})
	require.NoError(t, err)

	assert.Equal(t, []models.CallArg{
		{Type: "integer", Value: int64(1)},
		{Type: "boolean", Value: true},
		{Type: "string", Value: "x"},
	}, args)
}

func TestConvertArgsFailsOnBadBase58(t *testing.T) {
	f := newDappFixture(t, testConfig(), &mockNode{})

	_, err := f.svc.ConvertArgs([]models.ArgumentInput{
		{Name: "a", Type: "Int", Value: strPtr("1")},
		{Name: "key", Type: "ByteVector", Value: strPtr(""), ByteVectorType: "base58"},
	})
	assert.ErrorIs(t, err, ErrIncorrectBase58)
}

func TestFeeDependsOnScripted(t *testing.T) {
	f := newDappFixture(t, testConfig(), &mockNode{})
	assert.Equal(t, models.Fee{Tokens: "0.005", AssetID: "WAVES"}, f.svc.Fee())

	gen := f.store.BeginRefresh()
	f.store.ApplyScripted(gen, true)
	assert.Equal(t, models.Fee{Tokens: "0.009", AssetID: "WAVES"}, f.svc.Fee())
}

func TestDepositScenario(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/addresses/scriptInfo/"+accountAddress+"/meta", r.URL.Path)
		_, _ = w.Write([]byte(`{"address":"` + accountAddress + `","meta":{"callableFuncTypes":{"deposit":{"amount":"Int"}}}}`))
	}))
	defer srv.Close()

	cfg := testConfig()
	f := newDappFixture(t, cfg, client.NewNodeClient(cfg))
	f.store.SetNetwork(&models.Network{Code: "W", Server: srv.URL + "/"})
	f.store.SetAuthorized(true)

	view := f.svc.LoadDapp(context.Background(), accountAddress)
	require.False(t, view.IsFailed)
	deposit, ok := view.Meta.CallableFuncTypes.Lookup("deposit")
	require.True(t, ok)
	require.Len(t, deposit.Args, 1)

	inputs := []models.ArgumentInput{{
		Name:  deposit.Args[0].Name,
		Type:  deposit.Args[0].Type,
		Value: strPtr("100"),
	}}
	id, err := f.svc.CallCallableFunction(context.Background(), accountAddress, "deposit", inputs, nil)
	require.NoError(t, err)
	assert.Equal(t, "8vQeBd3D9rTz", id)

	require.Equal(t, 1, f.api.sentCount())
	tx := f.api.sent[0]
	assert.Equal(t, models.TxTypeInvokeScript, tx.Type)
	assert.Equal(t, accountAddress, tx.Data.DApp)
	assert.Equal(t, "deposit", tx.Data.Call.Function)
	assert.Equal(t, []models.CallArg{{Type: "integer", Value: int64(100)}}, tx.Data.Call.Args)
	assert.Equal(t, []models.Payment{}, tx.Data.Payment)
	assert.Equal(t, models.Fee{Tokens: "0.005", AssetID: "WAVES"}, tx.Data.Fee)

	successes := f.sink.ofType(notify.Success)
	require.Len(t, successes, 1)
	assert.Equal(t, "Transaction sent: 8vQeBd3D9rTz\n", successes[0].Message)
	assert.Equal(t, "https://wavesexplorer.com/tx/8vQeBd3D9rTz", successes[0].Link)
	assert.Equal(t, "View transaction", successes[0].LinkTitle)
}

func TestCallRejectedWhenNotAuthorized(t *testing.T) {
	f := newDappFixture(t, testConfig(), &mockNode{})

	_, err := f.svc.CallCallableFunction(context.Background(), accountAddress, "deposit",
		[]models.ArgumentInput{{Type: "Int", Value: strPtr("1")}}, nil)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	assert.Equal(t, 0, f.api.sentCount())
	warnings := f.sink.ofType(notify.Warning)
	require.Len(t, warnings, 1)
	assert.Equal(t, "Application is not authorized in WavesKeeper", warnings[0].Message)
}

func TestCallAbortsOnCoercionFailure(t *testing.T) {
	f := newDappFixture(t, testConfig(), &mockNode{})
	f.store.SetAuthorized(true)

	_, err := f.svc.CallCallableFunction(context.Background(), accountAddress, "deposit",
		[]models.ArgumentInput{{Type: "ByteVector", Value: strPtr("0OIl"), ByteVectorType: "base58"}}, nil)
	assert.ErrorIs(t, err, ErrIncorrectBase58)
	assert.Equal(t, 0, f.api.sentCount())
	assert.Len(t, f.sink.ofType(notify.Error), 1)
}

func TestCallSendsEmptyArgsOnCoercionFailureWhenConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.SendEmptyArgsOnError = true
	f := newDappFixture(t, cfg, &mockNode{})
	f.store.SetAuthorized(true)

	_, err := f.svc.CallCallableFunction(context.Background(), accountAddress, "deposit",
		[]models.ArgumentInput{{Type: "ByteVector", Value: strPtr("0OIl"), ByteVectorType: "base58"}}, nil)
	require.NoError(t, err)

	require.Equal(t, 1, f.api.sentCount())
	assert.Empty(t, f.api.sent[0].Data.Call.Args)
}

func TestCallRejectsInvalidPayment(t *testing.T) {
	f := newDappFixture(t, testConfig(), &mockNode{})
	f.store.SetAuthorized(true)

	_, err := f.svc.CallCallableFunction(context.Background(), accountAddress, "deposit", nil,
		[]models.Payment{{AssetID: "WAVES", Tokens: "abc"}})
	assert.ErrorIs(t, err, ErrInvalidPayment)
	assert.Equal(t, 0, f.api.sentCount())
}

func TestCallReportsKeeperFailure(t *testing.T) {
	f := newDappFixture(t, testConfig(), &mockNode{})
	f.store.SetAuthorized(true)
	f.api.sendErr = &keeper.Error{Code: "9", Message: "User denied message", Data: "rejected by user"}

	_, err := f.svc.CallCallableFunction(context.Background(), accountAddress, "deposit", nil, nil)
	require.Error(t, err)

	errs := f.sink.ofType(notify.Error)
	require.Len(t, errs, 1)
	assert.Equal(t, "rejected by user", errs[0].Message)
	assert.Equal(t, "User denied message", errs[0].Title)
}

func TestSuccessWithoutNetworkHasNoLink(t *testing.T) {
	f := newDappFixture(t, testConfig(), &mockNode{})
	f.store.SetAuthorized(true)

	_, err := f.svc.CallCallableFunction(context.Background(), accountAddress, "deposit", nil, nil)
	require.NoError(t, err)

	successes := f.sink.ofType(notify.Success)
	require.Len(t, successes, 1)
	assert.Empty(t, successes[0].Link)
}

func TestResolveServerFallsBackToAddressNetwork(t *testing.T) {
	f := newDappFixture(t, testConfig(), &mockNode{})

	server, err := f.svc.ResolveServer(accountAddress)
	require.NoError(t, err)
	assert.Equal(t, mainnetServer, server)

	f.store.SetNetwork(&models.Network{Code: "T", Server: "https://nodes-testnet.wavesnodes.com/"})
	server, err = f.svc.ResolveServer(accountAddress)
	require.NoError(t, err)
	assert.Equal(t, "https://nodes-testnet.wavesnodes.com/", server)
}

func TestGetDappMetaIsCached(t *testing.T) {
	node := &mockNode{}
	node.On("GetDappMeta", mock.Anything, mainnetServer, accountAddress).Return(&models.MetaResponse{
		Meta: models.DappMeta{Version: 1, CallableFuncTypes: models.CallableFuncTypes{{Name: "deposit"}}},
	}, nil).Once()

	f := newDappFixture(t, testConfig(), node)

	for i := 0; i < 3; i++ {
		meta, err := f.svc.GetDappMeta(context.Background(), mainnetServer, accountAddress)
		require.NoError(t, err)
		assert.Equal(t, 1, meta.Version)
	}
	node.AssertNumberOfCalls(t, "GetDappMeta", 1)
}

func TestLoadDappFailed(t *testing.T) {
	node := &mockNode{}
	node.On("GetDappMeta", mock.Anything, mainnetServer, accountAddress).
		Return(nil, &client.ResponseError{StatusCode: 400, Code: 199, Message: "Script is not set"})

	f := newDappFixture(t, testConfig(), node)
	view := f.svc.LoadDapp(context.Background(), accountAddress)
	assert.True(t, view.IsFailed)
	assert.Nil(t, view.Meta)

	view = f.svc.LoadDapp(context.Background(), "garbage")
	assert.True(t, view.IsFailed)
	assert.Empty(t, view.Server)
}

func TestDescribeFailure(t *testing.T) {
	message, title := describeFailure(errors.New("boom"))
	assert.Equal(t, "boom", message)
	assert.Empty(t, title)

	message, title = describeFailure(&keeper.Error{Code: "1", Message: "failed", Data: map[string]interface{}{"reason": "x"}})
	assert.JSONEq(t, `{"reason":"x"}`, message)
	assert.Equal(t, "failed", title)
}
