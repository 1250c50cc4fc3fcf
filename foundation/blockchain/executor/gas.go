package executor

// Gas is the schedule of fixed costs charged by the executor.
type Gas struct {
	Transaction               uint64 // Base cost of every message call.
	TransactionCreateContract uint64 // Base cost of every contract creation.
	TxNoZeroData              uint64 // Cost per non-zero byte of payload.
	TxZeroData                uint64 // Cost per zero byte of payload.
	CreateData                uint64 // Cost per byte of code saved by a creation.
	SuicideRefund             uint64 // Refund per account deleted by execution.
}

// Frontier returns the gas schedule of the frontier release.
func Frontier() Gas {
	return Gas{
		Transaction:               21000,
		TransactionCreateContract: 53000,
		TxNoZeroData:              68,
		TxZeroData:                4,
		CreateData:                200,
		SuicideRefund:             24000,
	}
}

// Intrinsic returns the gas charged before any code runs.
func (g Gas) Intrinsic(data []byte, create bool) uint64 {
	gas := g.Transaction
	if create {
		gas = g.TransactionCreateContract
	}

	for _, b := range data {
		switch b {
		case 0:
			gas += g.TxZeroData
		default:
			gas += g.TxNoZeroData
		}
	}

	return gas
}
