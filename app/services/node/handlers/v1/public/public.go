// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ardanlabs/frontier/business/web/errs"
	"github.com/ardanlabs/frontier/foundation/blockchain/database"
	"github.com/ardanlabs/frontier/foundation/blockchain/genesis"
	"github.com/ardanlabs/frontier/foundation/blockchain/pending"
	"github.com/ardanlabs/frontier/foundation/blockchain/state"
	"github.com/ardanlabs/frontier/foundation/blockchain/storage"
	"github.com/ardanlabs/frontier/foundation/events"
	"github.com/ardanlabs/frontier/foundation/nameservice"
	"github.com/ardanlabs/frontier/foundation/validate"
	"github.com/ardanlabs/frontier/foundation/web"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of public node endpoints.
type Handlers struct {
	Log     *zap.SugaredLogger
	State   *state.State
	Pending *pending.Pending
	Gen     genesis.Genesis
	NS      *nameservice.NameService
	WS      websocket.Upgrader
	Evts    *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	// Need this to handle CORS on the websocket.
	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	// This upgrades the HTTP connection to a websocket connection.
	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	// This provides a channel for receiving events from the blockchain.
	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	// Starting a ticker to send a ping message over the websocket.
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	// Block waiting for events from the blockchain or ticker.
	for {
		select {
		case msg, open := <-ch:
			if !open {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Genesis returns the genesis information.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	resp := struct {
		Genesis genesis.Genesis `json:"genesis"`
		Hash    common.Hash     `json:"hash"`
	}{
		Genesis: h.Gen,
		Hash:    h.State.Genesis().Hash(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Account returns the account at the head of the chain.
func (h Handlers) Account(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	addr, err := address(r)
	if err != nil {
		return err
	}

	acc, exists := h.State.Account(addr)
	if !exists {
		return errs.NewNotFound(fmt.Errorf("account %s not found", addr))
	}

	return web.Respond(ctx, w, toAccount(h.NS, addr, acc), http.StatusOK)
}

// PendingAccount returns the account as seen by the pending state.
func (h Handlers) PendingAccount(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	addr, err := address(r)
	if err != nil {
		return err
	}

	acc, exists := h.Pending.Account(addr)
	if !exists {
		return errs.NewNotFound(fmt.Errorf("account %s not found", addr))
	}

	return web.Respond(ctx, w, toAccount(h.NS, addr, acc), http.StatusOK)
}

// Block returns the canonical block by number. The number latest returns
// the head.
func (h Handlers) Block(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	number := web.Param(r, "number")

	var blk database.Block
	switch number {
	case "latest":
		blk = h.State.Head()

	default:
		num, err := strconv.ParseUint(number, 10, 64)
		if err != nil {
			return errs.NewBadRequest(fmt.Errorf("invalid block number %q", number))
		}

		blk, err = h.State.BlockByNumber(num)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return errs.NewNotFound(fmt.Errorf("block %d not found", num))
			}
			return err
		}
	}

	return web.Respond(ctx, w, toBlock(h.NS, blk), http.StatusOK)
}

// Receipt returns the receipt of a transaction. Transactions still pending
// return the receipt produced by the pending state.
func (h Handlers) Receipt(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	hash := web.Param(r, "hash")
	if err := validate.CheckHash(hash); err != nil {
		return errs.NewBadRequest(err)
	}
	txHash := common.HexToHash(hash)

	rcpt, err := h.State.Receipt(txHash)
	switch {
	case err == nil:
		return web.Respond(ctx, w, receipt{Receipt: rcpt}, http.StatusOK)

	case !errors.Is(err, storage.ErrNotFound):
		return err
	}

	rcpt, exists := h.Pending.Receipt(txHash)
	if !exists {
		return errs.NewNotFound(fmt.Errorf("receipt for %s not found", txHash))
	}

	return web.Respond(ctx, w, receipt{Receipt: rcpt, Pending: true}, http.StatusOK)
}

// PendingTxs returns the set of pending transactions.
func (h Handlers) PendingTxs(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	signedTxs := h.Pending.Txs()

	txs := make([]tx, len(signedTxs))
	for i, signedTx := range signedTxs {
		txs[i] = toTx(h.NS, signedTx)
	}

	return web.Respond(ctx, w, txs, http.StatusOK)
}

// SubmitTransaction adds a new wallet transaction to the pending state.
func (h Handlers) SubmitTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	signedTx, err := decodeTx(r)
	if err != nil {
		return err
	}

	h.Log.Infow("add user tran", "traceid", v.TraceID, "from:nonce", signedTx, "to", signedTx.To, "value", signedTx.Value)
	if err := h.Pending.AddLocal(signedTx); err != nil {
		return errs.NewBadRequest(err)
	}

	resp := struct {
		Status string      `json:"status"`
		Hash   common.Hash `json:"hash"`
	}{
		Status: "transaction added to pending",
		Hash:   signedTx.Hash(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// ApplyTransaction executes the transaction on top of the head and returns
// the result. Nothing is persisted.
func (h Handlers) ApplyTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	signedTx, err := decodeTx(r)
	if err != nil {
		return err
	}

	rcpt, res, err := h.State.ApplyTransaction(signedTx, h.State.NextBlockContext())
	if err != nil {
		return errs.NewBadRequest(err)
	}

	resp := applyResult{
		Receipt: rcpt,
		Outcome: res.Outcome.String(),
		Output:  res.Output,
		Reason:  res.Reason,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// =============================================================================

func address(r *http.Request) (common.Address, error) {
	addr := web.Param(r, "address")
	if err := validate.CheckAddress(addr); err != nil {
		return common.Address{}, errs.NewBadRequest(err)
	}

	return common.HexToAddress(addr), nil
}

func decodeTx(r *http.Request) (database.SignedTx, error) {
	var st submitTx
	if err := web.Decode(r, &st); err != nil {
		if validate.IsFieldErrors(err) {
			return database.SignedTx{}, err
		}
		return database.SignedTx{}, errs.NewBadRequest(fmt.Errorf("unable to decode payload: %w", err))
	}

	signedTx, err := st.toSignedTx()
	if err != nil {
		return database.SignedTx{}, errs.NewBadRequest(err)
	}

	return signedTx, nil
}
