// This program is a simple wallet for the frontier node. It manages the
// private keys and signs the transactions submitted to the node.
package main

import "github.com/ardanlabs/frontier/app/wallet/cli/cmd"

func main() {
	cmd.Execute()
}
