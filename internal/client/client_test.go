package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelsos/keeper-sync/internal/config"
)

const dappAddress = "3PQy6yvjB4xjamNQDuFxavkscLACqXW75sZ"

func newTestNode(t *testing.T, routes map[string]func(w http.ResponseWriter)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":404,"message":"not found"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		handler(w)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBuildURL(t *testing.T) {
	c := NewNodeClient(config.NewConfig())

	assert.Equal(t, "https://nodes.wavesnodes.com/assets/balance/x", c.BuildURL("https://nodes.wavesnodes.com", "assets/balance/x"))
	assert.Equal(t, "https://nodes.wavesnodes.com/assets/balance/x", c.BuildURL("https://nodes.wavesnodes.com/", "/assets/balance/x"))
}

func TestGetDappMeta(t *testing.T) {
	srv := newTestNode(t, map[string]func(w http.ResponseWriter){
		"/addresses/scriptInfo/" + dappAddress + "/meta": func(w http.ResponseWriter) {
			_, _ = w.Write([]byte(`{"address":"` + dappAddress + `","meta":{"version":1,"callableFuncTypes":{"deposit":{"amount":"Int"},"withdraw":{"amount":"Int","to":"ByteVector"}}}}`))
		},
	})

	c := NewNodeClient(config.NewConfig())
	res, err := c.GetDappMeta(context.Background(), srv.URL, dappAddress)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Meta.Version)
	require.Len(t, res.Meta.CallableFuncTypes, 2)
	assert.Equal(t, "deposit", res.Meta.CallableFuncTypes[0].Name)

	withdraw, ok := res.Meta.CallableFuncTypes.Lookup("withdraw")
	require.True(t, ok)
	require.Len(t, withdraw.Args, 2)
	assert.Equal(t, "amount", withdraw.Args[0].Name)
	assert.Equal(t, "to", withdraw.Args[1].Name)
	assert.Equal(t, "ByteVector", withdraw.Args[1].Type)
}

func TestGetDappMetaErrorBody(t *testing.T) {
	srv := newTestNode(t, map[string]func(w http.ResponseWriter){
		"/addresses/scriptInfo/" + dappAddress + "/meta": func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":199,"message":"Script is not set"}`))
		},
	})

	c := NewNodeClient(config.NewConfig())
	_, err := c.GetDappMeta(context.Background(), srv.URL, dappAddress)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNodeResponse))

	var nodeErr *ResponseError
	require.True(t, errors.As(err, &nodeErr))
	assert.Equal(t, http.StatusBadRequest, nodeErr.StatusCode)
	assert.Equal(t, "Script is not set", nodeErr.Message)
}

func TestGetBalances(t *testing.T) {
	srv := newTestNode(t, map[string]func(w http.ResponseWriter){
		"/assets/balance/" + dappAddress: func(w http.ResponseWriter) {
			_, _ = w.Write([]byte(`{"address":"` + dappAddress + `","balances":[{"assetId":"A1","balance":100,"issueTransaction":{"name":"Token","decimals":2}}]}`))
		},
	})

	c := NewNodeClient(config.NewConfig())
	res, err := c.GetBalances(context.Background(), srv.URL+"/", dappAddress)
	require.NoError(t, err)
	require.Len(t, res.Balances, 1)
	assert.Equal(t, "A1", res.Balances[0].AssetID)
	assert.Equal(t, "Token", res.Balances[0].IssueTransaction.Name)
	assert.Equal(t, 2, res.Balances[0].IssueTransaction.Decimals)
}

func TestGetScriptInfo(t *testing.T) {
	srv := newTestNode(t, map[string]func(w http.ResponseWriter){
		"/addresses/scriptInfo/" + dappAddress: func(w http.ResponseWriter) {
			_, _ = w.Write([]byte(`{"address":"` + dappAddress + `","script":"base64:AAIDAAAAAAAAAAA=","complexity":10,"extraFee":400000}`))
		},
		"/addresses/scriptInfo/plain": func(w http.ResponseWriter) {
			_, _ = w.Write([]byte(`{"address":"plain","script":null,"complexity":0,"extraFee":0}`))
		},
	})

	c := NewNodeClient(config.NewConfig())

	scripted, err := c.GetScriptInfo(context.Background(), srv.URL, dappAddress)
	require.NoError(t, err)
	assert.True(t, scripted.Scripted())

	plain, err := c.GetScriptInfo(context.Background(), srv.URL, "plain")
	require.NoError(t, err)
	assert.False(t, plain.Scripted())
}
