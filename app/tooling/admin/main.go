// This program performs administrative tasks against a node's database.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ardanlabs/frontier/app/tooling/admin/commands"
	"github.com/ardanlabs/frontier/foundation/blockchain/storage"
	"github.com/ardanlabs/frontier/foundation/blockchain/storage/leveldb"
	"github.com/ardanlabs/frontier/foundation/logger"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("ADMIN")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {
	if len(os.Args) < 2 {
		return errors.New("usage: admin genesis <path> | head <db> | blocks <db> [from] [to] | receipt <db> <txhash>")
	}

	if os.Args[1] == "genesis" {
		return commands.Genesis(os.Args)
	}

	if len(os.Args) < 3 {
		return errors.New("missing database path")
	}

	ldb, err := leveldb.New(os.Args[2], 16, 16, log)
	if err != nil {
		return err
	}
	store := storage.New(ldb)
	defer store.Close()

	return processCommands(os.Args, store)
}

// processCommands handles the execution of the commands specified on
// the command line.
func processCommands(args []string, store *storage.Store) error {
	switch args[1] {
	case "head":
		if err := commands.Head(store); err != nil {
			return fmt.Errorf("getting head: %w", err)
		}
	case "blocks":
		if err := commands.Blocks(args, store); err != nil {
			return fmt.Errorf("getting blocks: %w", err)
		}
	case "receipt":
		if err := commands.Receipt(args, store); err != nil {
			return fmt.Errorf("getting receipt: %w", err)
		}
	default:
		return fmt.Errorf("unknown command %q", args[1])
	}

	return nil
}
