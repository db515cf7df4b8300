package job

import (
	"context"
	"encoding/json"

	"github.com/whatsy12/bitcoinminer/internal/fault"
	"github.com/whatsy12/bitcoinminer/internal/rpc"
)

// SubmitResult is the node's verdict on a submitted block.
type SubmitResult struct {
	Accepted bool
	Reason   string
}

// BlockSubmitter hands a solved block to the network.
type BlockSubmitter interface {
	SubmitBlock(ctx context.Context, blockHex string) (SubmitResult, error)
}

// Submitter submits raw blocks to the node RPC.
type Submitter struct {
	client *rpc.Client
}

// NewSubmitter builds a submitter sharing the RPC client used for templates.
func NewSubmitter(client *rpc.Client) *Submitter {
	return &Submitter{client: client}
}

// SubmitBlock submits a raw block hex via submitblock. A null result means the
// block was accepted; a string result is the rejection reason.
func (s *Submitter) SubmitBlock(ctx context.Context, blockHex string) (SubmitResult, error) {
	var raw json.RawMessage
	if err := s.client.Call(ctx, "submitblock", []interface{}{blockHex}, &raw); err != nil {
		return SubmitResult{}, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return SubmitResult{Accepted: true}, nil
	}
	var reason string
	if err := json.Unmarshal(raw, &reason); err != nil {
		return SubmitResult{}, &fault.ProtocolError{Op: "submitblock", Message: "unexpected result " + string(raw)}
	}
	return SubmitResult{Reason: reason}, nil
}
