package bundlecore

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/bundle-relay/internal/config"
)

// chainIDNode answers eth_chainId only.
func chainIDNode(t *testing.T, chainID string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if req.Method == "eth_chainId" {
			resp["result"] = chainID
		} else {
			resp["error"] = map[string]any{"code": -32601, "message": "method not found"}
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dialSettings(rpcURL string) config.Settings {
	return config.Settings{
		RPCURL:        rpcURL,
		PrivateKeyHex: testKey,
		ChainID:       big.NewInt(config.DefaultChainID),
		RelayURL:      config.DefaultRelayURL,
		Recipient:     common.HexToAddress(config.DefaultRecipient),
		ValueWei:      big.NewInt(100),
		MaxAttempts:   config.DefaultMaxAttempts,
		BasefeeMul:    2,
		PollInterval:  time.Second,
	}
}

func TestDial(t *testing.T) {
	node := chainIDNode(t, "0xaa36a7")

	c, err := Dial(context.Background(), dialSettings(node.URL))
	require.NoError(t, err)
	defer c.Close()

	require.Equal(t, common.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"), c.Address())
	require.Equal(t, c.Address(), c.BundleSignerAddress())
	require.Equal(t, big.NewInt(config.DefaultChainID), c.ChainID())
}

func TestDialSeparateAuthKey(t *testing.T) {
	node := chainIDNode(t, "0xaa36a7")
	st := dialSettings(node.URL)
	st.FlashbotsAuthPKHex = "0x8f2a55949038a9610f50fb23b5883af3b4ecb3c3bb792cbcefbd1542c692be63"

	c, err := Dial(context.Background(), st)
	require.NoError(t, err)
	defer c.Close()
	require.NotEqual(t, c.Address(), c.BundleSignerAddress())
}

func TestDialChainIDMismatch(t *testing.T) {
	node := chainIDNode(t, "0x1")

	_, err := Dial(context.Background(), dialSettings(node.URL))
	require.ErrorIs(t, err, ErrChainIDMismatch)
}

func TestSendBundleRequiresTarget(t *testing.T) {
	chain := newFakeChain(1)
	relay := newFakeRelay(chain)
	c := newTestClient(t, chain, relay)

	_, err := c.SendBundle(context.Background(), NewBundle())
	require.Error(t, err)

	b := NewBundle().PushTransaction(signedPair(t)[0])
	_, err = c.SendBundle(context.Background(), b)
	require.Error(t, err)

	pb, err := c.SendBundle(context.Background(), b.SetBlock(5))
	require.NoError(t, err)
	require.Equal(t, uint64(5), pb.TargetBlock)
	require.Len(t, pb.Transactions, 1)
	require.Equal(t, []uint64{5}, relay.targets())
}
