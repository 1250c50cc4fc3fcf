package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/ardanlabs/frontier/app/services/node/handlers"
	"github.com/ardanlabs/frontier/foundation/blockchain/database"
	"github.com/ardanlabs/frontier/foundation/blockchain/genesis"
	"github.com/ardanlabs/frontier/foundation/blockchain/pending"
	"github.com/ardanlabs/frontier/foundation/blockchain/state"
	"github.com/ardanlabs/frontier/foundation/blockchain/storage"
	"github.com/ardanlabs/frontier/foundation/blockchain/storage/memory"
	"github.com/ardanlabs/frontier/foundation/events"
	"github.com/ardanlabs/frontier/foundation/nameservice"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const pkHexKey = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"

const genesisJSON = `{
	"chain_id": 1,
	"difficulty": 1,
	"gas_limit": 3141592,
	"balances": {
		"0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4": "1000000000"
	}
}`

const (
	alice = "0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4"
	bob   = "0xF01813E4B85e178A83e29B8E7bF26BD830a25f32"
)

func TestRoutes(t *testing.T) {
	st, pend, gen := newChain(t)

	cfg := handlers.MuxConfig{
		Shutdown: make(chan os.Signal, 1),
		Log:      zap.NewNop().Sugar(),
		State:    st,
		Pending:  pend,
		Genesis:  gen,
		NS:       emptyNS(t),
		Evts:     events.New(),
	}
	public := handlers.PublicMux(cfg)
	private := handlers.PrivateMux(cfg)

	t.Log("Given the need to serve the node API.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen reading the chain.", testID)
		{
			w := call(public, http.MethodGet, "/v1/genesis", nil)
			if w.Code != http.StatusOK {
				t.Fatalf("\t%s\tTest %d:\tShould get the genesis, got %d.", failed, testID, w.Code)
			}
			t.Logf("\t%s\tTest %d:\tShould get the genesis.", success, testID)

			var acc struct {
				Balance string `json:"balance"`
				Nonce   uint64 `json:"nonce"`
			}
			w = call(public, http.MethodGet, "/v1/accounts/"+alice, nil)
			if w.Code != http.StatusOK || decode(t, w, &acc).Balance != "1000000000" {
				t.Fatalf("\t%s\tTest %d:\tShould get the premined account, got %d.", failed, testID, w.Code)
			}
			t.Logf("\t%s\tTest %d:\tShould get the premined account.", success, testID)

			if w := call(public, http.MethodGet, "/v1/accounts/bob", nil); w.Code != http.StatusBadRequest {
				t.Fatalf("\t%s\tTest %d:\tShould reject a bad address, got %d.", failed, testID, w.Code)
			}
			if w := call(public, http.MethodGet, "/v1/accounts/"+bob, nil); w.Code != http.StatusNotFound {
				t.Fatalf("\t%s\tTest %d:\tShould not find an unknown account, got %d.", failed, testID, w.Code)
			}
			if w := call(public, http.MethodGet, "/v1/blocks/9", nil); w.Code != http.StatusNotFound {
				t.Fatalf("\t%s\tTest %d:\tShould not find an unknown block, got %d.", failed, testID, w.Code)
			}
			t.Logf("\t%s\tTest %d:\tShould report bad requests and missing values.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen submitting a transaction.", testID)
		var tx database.SignedTx
		{
			tx = sign(t)

			w := call(public, http.MethodPost, "/v1/tx/submit", submitBody(tx))
			if w.Code != http.StatusOK {
				t.Fatalf("\t%s\tTest %d:\tShould accept the transaction, got %d: %s", failed, testID, w.Code, w.Body)
			}
			t.Logf("\t%s\tTest %d:\tShould accept the transaction.", success, testID)

			if w := call(public, http.MethodPost, "/v1/tx/submit", submitBody(tx)); w.Code != http.StatusBadRequest {
				t.Fatalf("\t%s\tTest %d:\tShould reject the duplicate, got %d.", failed, testID, w.Code)
			}
			t.Logf("\t%s\tTest %d:\tShould reject the duplicate.", success, testID)

			var txs []json.RawMessage
			if w := call(public, http.MethodGet, "/v1/pending", nil); len(decode(t, w, &txs)) != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould list the pending transaction.", failed, testID)
			}

			var acc struct {
				Balance string `json:"balance"`
			}
			if w := call(public, http.MethodGet, "/v1/pending/accounts/"+bob, nil); decode(t, w, &acc).Balance != "100" {
				t.Fatalf("\t%s\tTest %d:\tShould show the pending balance, got %q.", failed, testID, acc.Balance)
			}

			var rcpt struct {
				Pending bool   `json:"pending"`
				GasUsed uint64 `json:"gas_used"`
			}
			if w := call(public, http.MethodGet, "/v1/receipts/"+tx.Hash().Hex(), nil); !decode(t, w, &rcpt).Pending || rcpt.GasUsed != 21000 {
				t.Fatalf("\t%s\tTest %d:\tShould return the pending receipt.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould expose the pending state.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen importing a block from a peer.", testID)
		{
			blk, err := st.NewBlock(state.NewBlockArgs{Coinbase: common.HexToAddress("0x0a01"), Txs: []database.SignedTx{tx}})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to build the block: %v", failed, testID, err)
			}

			data, err := blk.Encode()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to encode the block: %v", failed, testID, err)
			}

			var resp struct {
				Result string `json:"result"`
			}
			body := fmt.Sprintf(`{"block":%q}`, hexutil.Encode(data))
			w := call(private, http.MethodPost, "/v1/node/block/import", []byte(body))
			if w.Code != http.StatusOK || decode(t, w, &resp).Result != state.ImportedBest.String() {
				t.Fatalf("\t%s\tTest %d:\tShould import the block, got %d: %s", failed, testID, w.Code, w.Body)
			}
			t.Logf("\t%s\tTest %d:\tShould import the block.", success, testID)

			var number struct {
				Number uint64 `json:"number"`
			}
			if w := call(public, http.MethodGet, "/v1/blocks/latest", nil); decode(t, w, &number).Number != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould serve the new head.", failed, testID)
			}

			var rcpt struct {
				Pending   bool        `json:"pending"`
				BlockHash common.Hash `json:"block_hash"`
			}
			if w := call(public, http.MethodGet, "/v1/receipts/"+tx.Hash().Hex(), nil); decode(t, w, &rcpt).Pending || rcpt.BlockHash != blk.Hash() {
				t.Fatalf("\t%s\tTest %d:\tShould return the stored receipt.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould serve the imported block.", success, testID)

			w = call(private, http.MethodPost, "/v1/node/block/import", []byte(`{"block":"0x01"}`))
			if w.Code != http.StatusBadRequest {
				t.Fatalf("\t%s\tTest %d:\tShould reject a bad encoding, got %d.", failed, testID, w.Code)
			}
			t.Logf("\t%s\tTest %d:\tShould reject a bad encoding.", success, testID)
		}
	}
}

// =============================================================================

func newChain(t *testing.T) (*state.State, *pending.Pending, genesis.Genesis) {
	gen, err := genesis.Parse([]byte(genesisJSON))
	if err != nil {
		t.Fatalf("Should be able to parse the genesis: %v", err)
	}

	params := state.Frontier()
	params.Pow.MinimumDifficulty = big.NewInt(1)

	st, err := state.New(state.Config{
		Storage: storage.New(memory.New()),
		Genesis: gen,
		Params:  params,
	})
	if err != nil {
		t.Fatalf("Should be able to construct the state: %v", err)
	}

	pend, err := pending.New(pending.Config{Chain: st})
	if err != nil {
		t.Fatalf("Should be able to construct the pending state: %v", err)
	}

	return st, pend, gen
}

func emptyNS(t *testing.T) *nameservice.NameService {
	ns, err := nameservice.New(t.TempDir())
	if err != nil {
		t.Fatalf("Should be able to construct the name service: %v", err)
	}
	return ns
}

func sign(t *testing.T) database.SignedTx {
	pk, err := crypto.HexToECDSA(pkHexKey)
	if err != nil {
		t.Fatalf("Should be able to load the private key: %v", err)
	}

	to := common.HexToAddress(bob)
	tx, err := database.NewTx(0, &to, uint256.NewInt(100), 21000, uint256.NewInt(1), nil).Sign(pk)
	if err != nil {
		t.Fatalf("Should be able to sign the transaction: %v", err)
	}

	return tx
}

func submitBody(tx database.SignedTx) []byte {
	return []byte(fmt.Sprintf(`{"nonce":%d,"gas_price":%q,"gas_limit":%d,"to":%q,"value":%q,"data":"0x","sig":%q}`,
		tx.Nonce, tx.GasPrice.Dec(), tx.GasLimit, tx.To.Hex(), tx.Value.Dec(), tx.SignatureString()))
}

func call(h http.Handler, method string, path string, body []byte) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, path, bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder, v *T) T {
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Should be able to decode the response %d: %v", w.Code, err)
	}
	return *v
}
