package job

import (
	"encoding/binary"
	"strings"

	"github.com/whatsy12/bitcoinminer/internal/hexbytes"
)

// HeaderSize is the serialized header length.
const HeaderSize = 80

// Header is a block header candidate. PrevHash and MerkleRoot are held in the
// byte order they are written as hex; Encode reverses them.
type Header struct {
	Version    uint32
	PrevHash   [32]byte
	MerkleRoot [32]byte
	Time       uint32
	Bits       uint32
	Nonce      uint32
}

// Encode serializes the header:
// version | prevhash | merkleroot | time | bits | nonce
// Integers are little-endian, hashes byte-reversed.
func (h Header) Encode() [HeaderSize]byte {
	var out [HeaderSize]byte
	binary.LittleEndian.PutUint32(out[0:4], h.Version)
	copy(out[4:36], hexbytes.Reversed(h.PrevHash[:]))
	copy(out[36:68], hexbytes.Reversed(h.MerkleRoot[:]))
	binary.LittleEndian.PutUint32(out[68:72], h.Time)
	binary.LittleEndian.PutUint32(out[72:76], h.Bits)
	binary.LittleEndian.PutUint32(out[76:80], h.Nonce)
	return out
}

// AssembleBlock returns the block hex handed to submitblock: the header
// followed by the coinbase transaction. Peer transactions are not included.
func AssembleBlock(header [HeaderSize]byte, coinbaseHex string) string {
	var b strings.Builder
	b.Grow(HeaderSize*2 + len(coinbaseHex))
	b.WriteString(hexbytes.Encode(header[:]))
	b.WriteString(coinbaseHex)
	return b.String()
}
