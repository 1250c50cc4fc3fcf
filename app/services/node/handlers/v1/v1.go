// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/ardanlabs/frontier/app/services/node/handlers/v1/private"
	"github.com/ardanlabs/frontier/app/services/node/handlers/v1/public"
	"github.com/ardanlabs/frontier/foundation/blockchain/genesis"
	"github.com/ardanlabs/frontier/foundation/blockchain/pending"
	"github.com/ardanlabs/frontier/foundation/blockchain/state"
	"github.com/ardanlabs/frontier/foundation/events"
	"github.com/ardanlabs/frontier/foundation/nameservice"
	"github.com/ardanlabs/frontier/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log     *zap.SugaredLogger
	State   *state.State
	Pending *pending.Pending
	Genesis genesis.Genesis
	NS      *nameservice.NameService
	Evts    *events.Events
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:     cfg.Log,
		State:   cfg.State,
		Pending: cfg.Pending,
		Gen:     cfg.Genesis,
		NS:      cfg.NS,
		WS:      websocket.Upgrader{},
		Evts:    cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/events", pbl.Events)
	app.Handle(http.MethodGet, version, "/genesis", pbl.Genesis)
	app.Handle(http.MethodGet, version, "/accounts/:address", pbl.Account)
	app.Handle(http.MethodGet, version, "/blocks/:number", pbl.Block)
	app.Handle(http.MethodGet, version, "/receipts/:hash", pbl.Receipt)
	app.Handle(http.MethodGet, version, "/pending", pbl.PendingTxs)
	app.Handle(http.MethodGet, version, "/pending/accounts/:address", pbl.PendingAccount)
	app.Handle(http.MethodPost, version, "/tx/submit", pbl.SubmitTransaction)
	app.Handle(http.MethodPost, version, "/tx/apply", pbl.ApplyTransaction)
}

// PrivateRoutes binds all the version 1 private routes.
func PrivateRoutes(app *web.App, cfg Config) {
	prv := private.Handlers{
		Log:     cfg.Log,
		State:   cfg.State,
		Pending: cfg.Pending,
	}

	app.Handle(http.MethodGet, version, "/node/status", prv.Status)
	app.Handle(http.MethodPost, version, "/node/block/import", prv.ImportBlock)
	app.Handle(http.MethodPost, version, "/node/block/mine", prv.MineBlock)
}
