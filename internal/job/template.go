package job

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/whatsy12/bitcoinminer/internal/fault"
	"github.com/whatsy12/bitcoinminer/internal/hashing"
	"github.com/whatsy12/bitcoinminer/internal/hexbytes"
)

// RawTemplate is the getblocktemplate subset the miner consumes, exactly as
// the node sent it.
type RawTemplate struct {
	Version     int64
	PrevHash    string
	Bits        string
	CurTime     int64
	Height      int64
	Target      string
	CoinbaseHex string
	TxHashes    []string
}

// Source fetches block templates.
type Source interface {
	Next(ctx context.Context) (*RawTemplate, error)
}

// Template is a validated block template. It is never mutated after
// NewTemplate returns, so MerkleRoot always matches the coinbase and peer
// hashes it was computed from.
type Template struct {
	Version     uint32
	PrevHash    string
	Bits        uint32
	CurTime     uint32
	Height      int64
	Target      string
	CoinbaseHex string
	TxHashes    []string
	MerkleRoot  string

	prev [32]byte
	root [32]byte
}

// NewTemplate validates raw and derives the merkle root.
func NewTemplate(raw RawTemplate) (*Template, error) {
	if raw.Version < 0 || raw.Version > math.MaxUint32 {
		return nil, fault.Malformed("version", fmt.Errorf("out of range: %d", raw.Version))
	}
	if raw.CurTime < 0 || raw.CurTime > math.MaxUint32 {
		return nil, fault.Malformed("curtime", fmt.Errorf("out of range: %d", raw.CurTime))
	}
	if raw.Height < 0 {
		return nil, fault.Malformed("height", fmt.Errorf("negative: %d", raw.Height))
	}
	prev, err := ParseHash(raw.PrevHash)
	if err != nil {
		return nil, fault.Malformed("previousblockhash", err)
	}
	bits, err := ParseBits(raw.Bits)
	if err != nil {
		return nil, fault.Malformed("bits", err)
	}
	target, err := NormalizeTarget(raw.Target)
	if err != nil {
		return nil, fault.Malformed("target", err)
	}
	if raw.CoinbaseHex == "" {
		return nil, fault.Malformed("coinbasetxn", fmt.Errorf("missing coinbase data"))
	}
	coinbase, err := hexbytes.Decode(raw.CoinbaseHex)
	if err != nil {
		return nil, fault.Malformed("coinbasetxn", err)
	}

	leaves := make([]string, 0, len(raw.TxHashes)+1)
	leaves = append(leaves, hashing.Sum(coinbase).String())
	for i, h := range raw.TxHashes {
		if _, err := ParseHash(h); err != nil {
			return nil, fault.Malformed(fmt.Sprintf("transactions[%d].hash", i), err)
		}
		leaves = append(leaves, strings.ToLower(h))
	}
	rootHex, err := MerkleRoot(leaves)
	if err != nil {
		return nil, err
	}
	root, err := ParseHash(rootHex)
	if err != nil {
		return nil, fault.Malformed("merkleroot", err)
	}

	txs := make([]string, len(raw.TxHashes))
	copy(txs, raw.TxHashes)
	return &Template{
		Version:     uint32(raw.Version),
		PrevHash:    strings.ToLower(raw.PrevHash),
		Bits:        bits,
		CurTime:     uint32(raw.CurTime),
		Height:      raw.Height,
		Target:      target,
		CoinbaseHex: raw.CoinbaseHex,
		TxHashes:    txs,
		MerkleRoot:  rootHex,
		prev:        prev,
		root:        root,
	}, nil
}

// Header returns the candidate header for nonce.
func (t *Template) Header(nonce uint32) Header {
	return Header{
		Version:    t.Version,
		PrevHash:   t.prev,
		MerkleRoot: t.root,
		Time:       t.CurTime,
		Bits:       t.Bits,
		Nonce:      nonce,
	}
}

// ParseHash decodes a 64-character hex hash, keeping textual byte order.
func ParseHash(s string) ([32]byte, error) {
	if len(s) != 64 {
		return [32]byte{}, fmt.Errorf("want 64 hex characters, got %d", len(s))
	}
	return hexbytes.Decode32(s)
}

// ParseBits decodes the compact target as sent in the template.
func ParseBits(s string) (uint32, error) {
	if len(s) != 8 {
		return 0, fmt.Errorf("want 8 hex characters, got %d", len(s))
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
