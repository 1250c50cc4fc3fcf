package worker

// pendingOperations rebuilds the pending state each time a new best block
// is signaled. Requests that arrive while an update runs are coalesced so
// only the latest block is processed next.
func (w *Worker) pendingOperations() {
	w.evHandler("worker: pendingOperations: G started")
	defer w.evHandler("worker: pendingOperations: G completed")

	for {
		select {
		case blk := <-w.bestBlock:
			if !w.isShutdown() {
				w.pending.Reconcile(blk)
			}
		case <-w.shut:
			w.evHandler("worker: pendingOperations: received shut signal")
			return
		}
	}
}
