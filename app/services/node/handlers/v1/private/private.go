// Package private maintains the group of handlers for node to node access.
package private

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ardanlabs/frontier/business/web/errs"
	"github.com/ardanlabs/frontier/foundation/blockchain/database"
	"github.com/ardanlabs/frontier/foundation/blockchain/pending"
	"github.com/ardanlabs/frontier/foundation/blockchain/state"
	"github.com/ardanlabs/frontier/foundation/web"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
)

// Handlers manages the set of node to node endpoints.
type Handlers struct {
	Log     *zap.SugaredLogger
	State   *state.State
	Pending *pending.Pending
}

// Status returns the current status of the node.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	head := h.State.Head()

	status := struct {
		HeadHash        common.Hash    `json:"head_hash"`
		HeadNumber      uint64         `json:"head_number"`
		TotalDifficulty string         `json:"total_difficulty"`
		Coinbase        common.Address `json:"coinbase"`
		Pending         int            `json:"pending"`
	}{
		HeadHash:        head.Hash(),
		HeadNumber:      head.Number(),
		TotalDifficulty: h.State.HeadTD().String(),
		Coinbase:        h.State.Coinbase(),
		Pending:         h.Pending.Count(),
	}

	return web.Respond(ctx, w, status, http.StatusOK)
}

// ImportBlock takes a block encoded by a peer, validates it and if that
// passes, adds the block to the local blockchain. A block that becomes the
// new head cancels the local mining operation.
func (h Handlers) ImportBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var req struct {
		Block hexutil.Bytes `json:"block" validate:"required"`
	}
	if err := web.Decode(r, &req); err != nil {
		return errs.NewBadRequest(fmt.Errorf("unable to decode payload: %w", err))
	}

	blk, err := database.DecodeBlock(req.Block)
	if err != nil {
		return errs.NewBadRequest(err)
	}

	result, err := h.State.ImportBlock(blk)
	h.Log.Infow("import block", "traceid", v.TraceID, "blk", blk.Header, "result", result)

	if err != nil {
		return errs.NewTrusted(fmt.Errorf("block not accepted: %w", err), http.StatusNotAcceptable)
	}

	if result == state.ImportedBest && h.State.Worker != nil {
		h.State.Worker.SignalCancelMining()
	}

	resp := struct {
		Result string      `json:"result"`
		Hash   common.Hash `json:"hash"`
	}{
		Result: result.String(),
		Hash:   blk.Hash(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// MineBlock signals the worker to mine a block with the pending
// transactions.
func (h Handlers) MineBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if h.State.Worker == nil {
		return errs.NewTrusted(errors.New("mining is not available"), http.StatusServiceUnavailable)
	}

	h.State.Worker.SignalStartMining()

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "mining operation started",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}
