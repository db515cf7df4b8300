package job

import (
	"github.com/whatsy12/bitcoinminer/internal/fault"
	"github.com/whatsy12/bitcoinminer/internal/hashing"
	"github.com/whatsy12/bitcoinminer/internal/hexbytes"
)

// MerkleRoot reduces hex hashes pairwise to a single hex root. Element 0 is
// the coinbase digest and order is preserved. On an odd level the last
// element is paired with itself. An empty list yields "", which callers
// treat as "no template yet"; a single element is returned unchanged.
func MerkleRoot(hashes []string) (string, error) {
	if len(hashes) == 0 {
		return "", nil
	}
	if len(hashes) == 1 {
		return hashes[0], nil
	}

	level := make([][]byte, len(hashes))
	for i, h := range hashes {
		b, err := hexbytes.Decode(h)
		if err != nil {
			return "", fault.Malformed("merkle leaf", err)
		}
		level[i] = b
	}

	for len(level) > 1 {
		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left
			if i+1 < len(level) {
				right = level[i+1]
			}
			buf := make([]byte, 0, len(left)+len(right))
			buf = append(buf, left...)
			buf = append(buf, right...)
			d := hashing.Double(buf)
			next = append(next, d[:])
		}
		level = next
	}
	return hexbytes.Encode(level[0]), nil
}
