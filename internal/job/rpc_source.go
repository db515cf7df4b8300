package job

import (
	"context"

	"github.com/whatsy12/bitcoinminer/internal/rpc"
)

// RPCSource implements Source against the node's getblocktemplate.
type RPCSource struct {
	client *rpc.Client
}

// NewRPCSource creates a Source on top of an RPC client.
func NewRPCSource(client *rpc.Client) *RPCSource {
	return &RPCSource{client: client}
}

type templateResult struct {
	Version           int64            `json:"version"`
	PreviousBlockhash string           `json:"previousblockhash"`
	Bits              string           `json:"bits"`
	Target            string           `json:"target"`
	Curtime           int64            `json:"curtime"`
	Height            int64            `json:"height"`
	CoinbaseTxn       templateCoinbase `json:"coinbasetxn"`
	Transactions      []templateTx     `json:"transactions"`
}

type templateCoinbase struct {
	Data string `json:"data"`
}

type templateTx struct {
	Hash string `json:"hash"`
	Data string `json:"data"`
}

var templateRequest = map[string]interface{}{"rules": []string{"segwit"}}

// Next returns a fresh block template.
func (r *RPCSource) Next(ctx context.Context) (*RawTemplate, error) {
	var tr templateResult
	if err := r.client.Call(ctx, "getblocktemplate", []interface{}{templateRequest}, &tr); err != nil {
		return nil, err
	}
	txHashes := make([]string, 0, len(tr.Transactions))
	for _, tx := range tr.Transactions {
		txHashes = append(txHashes, tx.Hash)
	}
	return &RawTemplate{
		Version:     tr.Version,
		PrevHash:    tr.PreviousBlockhash,
		Bits:        tr.Bits,
		CurTime:     tr.Curtime,
		Height:      tr.Height,
		Target:      tr.Target,
		CoinbaseHex: tr.CoinbaseTxn.Data,
		TxHashes:    txHashes,
	}, nil
}
