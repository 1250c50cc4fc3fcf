package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ardanlabs/frontier/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
)

var (
	nonce    uint64
	to       string
	value    string
	gasPrice string
	gasLimit uint64
	data     []byte
	dryRun   bool
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Sign and send a transaction",
	RunE:  sendRun,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().Uint64VarP(&nonce, "nonce", "i", 0, "Nonce of the sending account.")
	sendCmd.Flags().StringVarP(&to, "to", "t", "", "Address receiving the value. Empty creates a contract.")
	sendCmd.Flags().StringVarP(&value, "value", "v", "0", "Wei to send.")
	sendCmd.Flags().StringVarP(&gasPrice, "gas-price", "g", "1", "Wei paid for each unit of gas.")
	sendCmd.Flags().Uint64VarP(&gasLimit, "gas-limit", "l", 21000, "Maximum units of gas to pay for.")
	sendCmd.Flags().BytesHexVarP(&data, "data", "d", nil, "Call data or contract code.")
	sendCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Apply the transaction on the head without submitting it.")
}

func sendRun(cmd *cobra.Command, args []string) error {
	privateKey, err := loadPrivateKey()
	if err != nil {
		return err
	}

	v, err := uint256.FromDecimal(value)
	if err != nil {
		return fmt.Errorf("value: %w", err)
	}

	price, err := uint256.FromDecimal(gasPrice)
	if err != nil {
		return fmt.Errorf("gas price: %w", err)
	}

	var toAddr *common.Address
	if to != "" {
		if !common.IsHexAddress(to) {
			return fmt.Errorf("invalid address %q", to)
		}
		addr := common.HexToAddress(to)
		toAddr = &addr
	}

	signedTx, err := database.NewTx(nonce, toAddr, v, gasLimit, price, data).Sign(privateKey)
	if err != nil {
		return err
	}

	req := struct {
		Nonce    uint64        `json:"nonce"`
		GasPrice string        `json:"gas_price"`
		GasLimit uint64        `json:"gas_limit"`
		To       string        `json:"to,omitempty"`
		Value    string        `json:"value"`
		Data     hexutil.Bytes `json:"data"`
		Sig      string        `json:"sig"`
	}{
		Nonce:    signedTx.Nonce,
		GasPrice: signedTx.GasPrice.Dec(),
		GasLimit: signedTx.GasLimit,
		To:       to,
		Value:    signedTx.Value.Dec(),
		Data:     signedTx.Data,
		Sig:      signedTx.SignatureString(),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	route := "submit"
	if dryRun {
		route = "apply"
	}

	resp, err := http.Post(fmt.Sprintf("%s/v1/tx/%s", url, route), "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	fmt.Printf("%s: %s\n", resp.Status, out)

	return nil
}
