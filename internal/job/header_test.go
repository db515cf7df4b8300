package job

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const genesisHeaderHex = "01000000" +
	"0000000000000000000000000000000000000000000000000000000000000000" +
	"3ba3edfd7a7b12b27ac72c3e67768f617fc81bc3888a51323a9fb8aa4b1e5e4a" +
	"29ab5f49" + "ffff001d" + "1dac2b7c"

func TestEncodeGenesisHeader(t *testing.T) {
	prev, err := ParseHash(strings.Repeat("0", 64))
	require.NoError(t, err)
	root, err := ParseHash("4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b")
	require.NoError(t, err)

	h := Header{
		Version:    1,
		PrevHash:   prev,
		MerkleRoot: root,
		Time:       1231006505,
		Bits:       0x1d00ffff,
		Nonce:      2083236893,
	}
	enc := h.Encode()
	assert.Len(t, enc, HeaderSize)
	assert.Equal(t, genesisHeaderHex, hex.EncodeToString(enc[:]))
}

func TestEncodeReversesHashes(t *testing.T) {
	var prev, root [32]byte
	for i := range prev {
		prev[i] = byte(i)
		root[i] = byte(0xa0 + i%16)
	}
	enc := Header{PrevHash: prev, MerkleRoot: root}.Encode()
	for i := 0; i < 32; i++ {
		assert.Equal(t, prev[31-i], enc[4+i])
		assert.Equal(t, root[31-i], enc[36+i])
	}
}

func TestEncodeLittleEndianIntegers(t *testing.T) {
	enc := Header{Version: 0x20000000, Time: 0x01020304, Bits: 0x170fffff, Nonce: 0xdeadbeef}.Encode()
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x20}, enc[0:4])
	assert.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, enc[68:72])
	assert.Equal(t, []byte{0xff, 0xff, 0x0f, 0x17}, enc[72:76])
	assert.Equal(t, []byte{0xef, 0xbe, 0xad, 0xde}, enc[76:80])
}

func TestAssembleBlock(t *testing.T) {
	enc := Header{Nonce: 7}.Encode()
	block := AssembleBlock(enc, "01000000abcd")
	assert.Len(t, block, HeaderSize*2+12)
	assert.True(t, strings.HasPrefix(block, hex.EncodeToString(enc[:])))
	assert.True(t, strings.HasSuffix(block, "01000000abcd"))
}

func TestParseHashRejectsBadInput(t *testing.T) {
	_, err := ParseHash("abcd")
	assert.Error(t, err)
	_, err = ParseHash(strings.Repeat("g", 64))
	assert.Error(t, err)
}

func TestParseBits(t *testing.T) {
	bits, err := ParseBits("1d00ffff")
	require.NoError(t, err)
	assert.Equal(t, uint32(0x1d00ffff), bits)

	_, err = ParseBits("1d00ff")
	assert.Error(t, err)
	_, err = ParseBits("1d00ffzz")
	assert.Error(t, err)
}
