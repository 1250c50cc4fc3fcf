package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ardanlabs/frontier/foundation/blockchain/database"
	"github.com/spf13/cobra"
)

var pendingView bool

type account struct {
	Address string `json:"address"`
	Nonce   uint64 `json:"nonce"`
	Balance string `json:"balance"`
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print your balance and nonce.",
	RunE:  balanceRun,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
	balanceCmd.Flags().BoolVarP(&pendingView, "pending", "n", false, "Read the account from the pending state.")
}

func balanceRun(cmd *cobra.Command, args []string) error {
	privateKey, err := loadPrivateKey()
	if err != nil {
		return err
	}

	addr := database.PublicKeyToAddress(privateKey.PublicKey)
	fmt.Println("For Account:", addr.Hex())

	path := "accounts"
	if pendingView {
		path = "pending/accounts"
	}

	resp, err := http.Get(fmt.Sprintf("%s/v1/%s/%s", url, path, addr.Hex()))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		fmt.Println("Balance: 0  Nonce: 0")
		return nil
	}

	var acc account
	if err := json.NewDecoder(resp.Body).Decode(&acc); err != nil {
		return err
	}

	fmt.Printf("Balance: %s  Nonce: %d\n", acc.Balance, acc.Nonce)

	return nil
}
