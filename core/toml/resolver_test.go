package toml

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stellar/go/keypair"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marwen-abid/stellar-watch-sdk-go/core/net"
	"github.com/marwen-abid/stellar-watch-sdk-go/errors"
)

func serve(t *testing.T, body string, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != wellKnownPath {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestResolver_Resolve(t *testing.T) {
	issuer := keypair.MustRandom().Address()
	srv, hits := serve(t, `
NETWORK_PASSPHRASE="Test SDF Network ; September 2015"
HORIZON_URL="https://horizon.example.com"
ACCOUNTS=["`+issuer+`"]

[[CURRENCIES]]
code="KIN"
issuer="`+issuer+`"
display_decimals=2

[[CURRENCIES]]
code="BAD"
issuer="not-an-account"
`, http.StatusOK)

	r := NewResolver(net.NewClient(net.WithMaxRetries(0)))
	info, err := r.Resolve(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "https://horizon.example.com", info.HorizonURL)
	assert.Equal(t, "Test SDF Network ; September 2015", info.NetworkPassphrase)
	assert.Equal(t, []string{issuer}, info.Accounts)
	require.Len(t, info.Currencies, 1)
	assert.Equal(t, 2, info.Currencies[0].DisplayDecimals)

	asset, ok := info.Asset("kin")
	assert.True(t, ok)
	assert.Equal(t, "KIN:"+issuer, asset)

	_, ok = info.Asset("BAD")
	assert.False(t, ok)

	_, err = r.Resolve(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestResolver_NotFound(t *testing.T) {
	srv, _ := serve(t, "", http.StatusNotFound)

	_, err := NewResolver(net.NewClient(net.WithMaxRetries(0))).Resolve(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, &errors.StellarWatchError{Code: errors.TOML_FETCH_FAILED}))
}

func TestResolver_Invalid(t *testing.T) {
	srv, _ := serve(t, "HORIZON_URL = [unterminated", http.StatusOK)

	_, err := NewResolver(net.NewClient(net.WithMaxRetries(0))).Resolve(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, errors.TOML_INVALID, errors.CodeOf(err))
}
