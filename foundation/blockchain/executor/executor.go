// Package executor applies a single transaction against a world view. Each
// application runs four phases in order: validate, prepay, dispatch and
// finalize. A transaction that fails validation is declined and leaves the
// view untouched.
package executor

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/frontier/foundation/blockchain/database"
	"github.com/ardanlabs/frontier/foundation/blockchain/metrics"
	"github.com/ardanlabs/frontier/foundation/blockchain/vm"
	"github.com/ardanlabs/frontier/foundation/blockchain/world"
	"github.com/ethereum/go-ethereum/common"
	gethvm "github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// EventHandler defines a function that is called when events
// occur in the processing of transactions.
type EventHandler func(v string, args ...any)

// Config represents the collaborators required by the executor.
type Config struct {
	Interpreter vm.Interpreter
	Gas         Gas
	EvHandler   EventHandler
}

// Executor applies transactions. It holds no per transaction state and can
// be shared, but each view passed to Apply must only be used by one
// goroutine at a time.
type Executor struct {
	interp      vm.Interpreter
	gas         Gas
	precompiles map[common.Address]gethvm.PrecompiledContract
	evHandler   EventHandler
}

// New constructs an executor. The frontier gas schedule is used when none
// is provided.
func New(cfg Config) *Executor {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	gas := cfg.Gas
	if gas == (Gas{}) {
		gas = Frontier()
	}

	interp := cfg.Interpreter
	if interp == nil {
		interp = vm.Disabled{}
	}

	return &Executor{
		interp:      interp,
		gas:         gas,
		precompiles: precompiled(),
		evHandler:   ev,
	}
}

// Gas returns the gas schedule in use.
func (e *Executor) Gas() Gas {
	return e.gas
}

// =============================================================================

// Context describes the block a transaction is applied in.
type Context struct {
	Block             vm.BlockContext
	CumulativeGasUsed uint64
}

// Summary describes an applied transaction.
type Summary struct {
	Receipt database.Receipt
	Result  vm.Result
	Sender  common.Address
	GasUsed uint64       // Gas charged after the refund.
	Refund  *uint256.Int // Wei returned to the sender.
	Fee     *uint256.Int // Wei paid to the coinbase.
}

// Apply validates and applies the transaction to the view. A declined
// transaction returns a NotReadyError and makes no changes. Failures of the
// executing code are reported in the summary, not as an error.
func (e *Executor) Apply(view *world.Track, tx database.SignedTx, ctx Context) (Summary, error) {
	from, err := tx.FromAddress()
	if err != nil {
		return Summary{}, e.decline(tx, newNotReady(ErrInvalidSender, "%v", err))
	}

	intrinsic, err := e.validate(view, tx, from, ctx)
	if err != nil {
		return Summary{}, e.decline(tx, err)
	}

	if err := e.prepay(view, tx, from); err != nil {
		return Summary{}, fmt.Errorf("apply: tx[%s]: %w", tx.Hash(), err)
	}

	res, contract := e.dispatch(view, tx, from, intrinsic, ctx)

	sum := e.finalize(view, tx, from, intrinsic, res, contract, ctx)

	metrics.TxApplied.WithLabelValues(sum.Result.Outcome.String()).Inc()
	metrics.GasUsed.Add(float64(sum.GasUsed))

	e.evHandler("executor: Apply: tx[%s]: outcome[%s]: gas[%d]", tx, sum.Result.Outcome, sum.GasUsed)

	return sum, nil
}

// =============================================================================

// validate performs the checks that decide if the transaction is ready, in
// order: block gas, intrinsic gas, nonce and balance.
func (e *Executor) validate(view *world.Track, tx database.SignedTx, from common.Address, ctx Context) (uint64, error) {
	total := ctx.CumulativeGasUsed + tx.GasLimit
	if total < ctx.CumulativeGasUsed || total > ctx.Block.GasLimit {
		return 0, newNotReady(ErrBlockGasLimit, "used[%d] limit[%d] block[%d]", ctx.CumulativeGasUsed, tx.GasLimit, ctx.Block.GasLimit)
	}

	intrinsic := e.gas.Intrinsic(tx.Data, tx.IsCreate())
	if tx.GasLimit < intrinsic {
		return 0, newNotReady(ErrIntrinsicGas, "intrinsic[%d] limit[%d]", intrinsic, tx.GasLimit)
	}

	if nonce := view.Nonce(from); nonce != tx.Nonce {
		return 0, newNotReady(ErrNonce, "account[%d] tx[%d]", nonce, tx.Nonce)
	}

	cost, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(tx.GasLimit), orZero(tx.GasPrice))
	if !overflow {
		cost, overflow = cost.AddOverflow(cost, orZero(tx.Value))
	}

	if balance := view.Balance(from); overflow || balance.Lt(cost) {
		return 0, newNotReady(ErrInsufficientFunds, "balance[%s] cost[%s]", balance.Dec(), cost.Dec())
	}

	return intrinsic, nil
}

// prepay debits the maximum gas fee and increments the sender nonce on the
// outer view so both survive a failed dispatch. The view is unchanged when
// the debit fails.
func (e *Executor) prepay(view *world.Track, tx database.SignedTx, from common.Address) error {
	prepaid := new(uint256.Int).Mul(uint256.NewInt(tx.GasLimit), orZero(tx.GasPrice))
	if err := view.SubBalance(from, prepaid); err != nil {
		return fmt.Errorf("prepay: %w", err)
	}

	view.IncreaseNonce(from)

	return nil
}

// dispatch runs the creation or call inside a child checkpoint. The result's
// GasUsed excludes the intrinsic gas. The contract address is returned when
// a creation succeeds.
func (e *Executor) dispatch(view *world.Track, tx database.SignedTx, from common.Address, intrinsic uint64, ctx Context) (vm.Result, *common.Address) {
	gasLeft := tx.GasLimit - intrinsic

	if tx.IsCreate() {
		return e.create(view, tx, from, gasLeft, ctx)
	}

	return e.call(view, tx, from, gasLeft, ctx), nil
}

// create opens a checkpoint, funds the new account and runs the init code.
func (e *Executor) create(view *world.Track, tx database.SignedTx, from common.Address, gasLeft uint64, ctx Context) (vm.Result, *common.Address) {
	addr := crypto.CreateAddress(from, tx.Nonce)

	cp := view.StartTracking()

	if acc, exists := cp.Account(addr); exists && acc.HasCode() {
		cp.Rollback()
		return fault(gasLeft, "contract address collision"), nil
	}

	// Any balance sent to the address before it was created is kept.
	balance := cp.Balance(addr)
	cp.CreateAccount(addr)
	cp.AddBalance(addr, balance)

	if err := transfer(cp, from, addr, orZero(tx.Value)); err != nil {
		cp.Rollback()
		return fault(gasLeft, err.Error()), nil
	}

	res := vm.Result{Outcome: vm.Ok}
	if len(tx.Data) > 0 {
		res = e.interp.Run(vm.Parameters{
			Kind:      vm.Create,
			Origin:    from,
			Caller:    from,
			Recipient: addr,
			Value:     orZero(tx.Value),
			Gas:       gasLeft,
			GasPrice:  orZero(tx.GasPrice),
			Code:      tx.Data,
			World:     cp,
			Block:     ctx.Block,
		})
	}

	if res.Outcome != vm.Ok {
		cp.Rollback()
		return capGas(res, gasLeft), nil
	}

	deposit := uint64(len(res.Output)) * e.gas.CreateData
	if res.GasUsed > gasLeft || deposit > gasLeft-res.GasUsed {
		cp.Rollback()
		return vm.Result{Outcome: vm.OutOfGas, GasUsed: gasLeft, Reason: "not enough gas to save contract code"}, nil
	}

	if err := cp.SaveCode(addr, res.Output); err != nil {
		cp.Rollback()
		return fault(gasLeft, err.Error()), nil
	}

	res.GasUsed += deposit
	cp.Commit()

	return res, &addr
}

// call opens a checkpoint, transfers the value and runs the recipient's code
// or precompiled contract. A recipient without code is a plain transfer.
func (e *Executor) call(view *world.Track, tx database.SignedTx, from common.Address, gasLeft uint64, ctx Context) vm.Result {
	to := *tx.To

	cp := view.StartTracking()

	if c, exists := e.precompiles[to]; exists {
		output, gasUsed, enough, err := runPrecompiled(c, tx.Data, gasLeft)
		switch {
		case !enough:
			cp.Rollback()
			return vm.Result{Outcome: vm.OutOfGas, GasUsed: gasLeft, Reason: "not enough gas for precompiled contract"}

		case err != nil:
			cp.Rollback()
			return fault(gasLeft, err.Error())
		}

		if err := transfer(cp, from, to, orZero(tx.Value)); err != nil {
			cp.Rollback()
			return fault(gasLeft, err.Error())
		}

		cp.Commit()
		return vm.Result{Outcome: vm.Ok, GasUsed: gasUsed, Output: output}
	}

	if err := transfer(cp, from, to, orZero(tx.Value)); err != nil {
		cp.Rollback()
		return fault(gasLeft, err.Error())
	}

	code := cp.Code(to)
	if len(code) == 0 {
		cp.Commit()
		return vm.Result{Outcome: vm.Ok}
	}

	res := e.interp.Run(vm.Parameters{
		Kind:      vm.Call,
		Origin:    from,
		Caller:    from,
		Recipient: to,
		Value:     orZero(tx.Value),
		Gas:       gasLeft,
		GasPrice:  orZero(tx.GasPrice),
		Input:     tx.Data,
		Code:      code,
		World:     cp,
		Block:     ctx.Block,
	})

	if res.Outcome == vm.Ok && res.GasUsed > gasLeft {
		res = vm.Result{Outcome: vm.OutOfGas, GasUsed: gasLeft}
	}

	if res.Outcome != vm.Ok {
		cp.Rollback()
		return capGas(res, gasLeft)
	}

	cp.Commit()
	return res
}

// finalize settles the gas, applies deletions and produces the receipt.
func (e *Executor) finalize(view *world.Track, tx database.SignedTx, from common.Address, intrinsic uint64, res vm.Result, contract *common.Address, ctx Context) Summary {
	used := intrinsic + res.GasUsed

	switch res.Outcome {
	case vm.OutOfGas, vm.Fault, vm.Reverted:
		used = tx.GasLimit
		res.Logs, res.Deleted, res.GasRefund = nil, nil, 0
	}

	deleted := unique(res.Deleted)
	refund := min(res.GasRefund+uint64(len(deleted))*e.gas.SuicideRefund, used/2)
	endGas := tx.GasLimit - used + refund

	price := orZero(tx.GasPrice)
	senderCredit := new(uint256.Int).Mul(uint256.NewInt(endGas), price)
	fee := new(uint256.Int).Mul(uint256.NewInt(tx.GasLimit-endGas), price)

	view.AddBalance(from, senderCredit)
	view.AddBalance(ctx.Block.Coinbase, fee)

	for _, addr := range deleted {
		view.Delete(addr)
	}

	charged := tx.GasLimit - endGas

	receipt := database.Receipt{
		PostState:         view.RootHash(),
		CumulativeGasUsed: ctx.CumulativeGasUsed + charged,
		Bloom:             database.LogsBloom(res.Logs),
		Logs:              res.Logs,
		TxHash:            tx.Hash(),
		ContractAddress:   contract,
		GasUsed:           charged,
		BlockNumber:       ctx.Block.Number,
	}

	if res.Outcome != vm.Ok {
		receipt.Failure = res.Outcome.String()
		if res.Reason != "" {
			receipt.Failure += ": " + res.Reason
		}
	}

	return Summary{
		Receipt: receipt,
		Result:  res,
		Sender:  from,
		GasUsed: charged,
		Refund:  senderCredit,
		Fee:     fee,
	}
}

// decline records the declined transaction.
func (e *Executor) decline(tx database.SignedTx, err error) error {
	metrics.TxDeclined.WithLabelValues(declineLabel(err)).Inc()
	e.evHandler("executor: Apply: tx[%s]: declined: %s", tx, err)

	return err
}

// =============================================================================

// transfer moves value between accounts in the view.
func transfer(view *world.Track, from common.Address, to common.Address, value *uint256.Int) error {
	if err := view.SubBalance(from, value); err != nil {
		return err
	}

	view.AddBalance(to, value)
	return nil
}

// fault constructs a fault result that consumes all of the gas.
func fault(gas uint64, reason string) vm.Result {
	return vm.Result{Outcome: vm.Fault, GasUsed: gas, Reason: reason}
}

// capGas bounds the gas reported by a failed execution.
func capGas(res vm.Result, gas uint64) vm.Result {
	if res.GasUsed > gas {
		res.GasUsed = gas
	}
	return res
}

// unique removes repeated addresses keeping the first occurrence.
func unique(addrs []common.Address) []common.Address {
	if len(addrs) == 0 {
		return nil
	}

	seen := make(map[common.Address]struct{}, len(addrs))
	out := make([]common.Address, 0, len(addrs))
	for _, addr := range addrs {
		if _, exists := seen[addr]; exists {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}

	return out
}

// orZero returns zero for a missing amount.
func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}

// declineLabel maps a decline to a metric label.
func declineLabel(err error) string {
	switch {
	case errors.Is(err, ErrBlockGasLimit):
		return "block_gas_limit"
	case errors.Is(err, ErrIntrinsicGas):
		return "intrinsic_gas"
	case errors.Is(err, ErrNonce):
		return "nonce"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrInvalidSender):
		return "invalid_sender"
	}
	return "other"
}
