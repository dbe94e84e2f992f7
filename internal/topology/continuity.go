package topology

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// BlockBits is the number of outputs covered by one continuity block.
const BlockBits = 64

// Continuity is a receiver's continuity report: ordered 64-bit blocks, bit i of block
// b covering output b*64+i. Receivers observed so far send two blocks.
type Continuity []uint64

// Active reports whether the output at positional index has continuity. Indexes
// beyond the reported blocks are inactive.
func (c Continuity) Active(index int) bool {
	if index < 0 {
		return false
	}
	block, bit := index/BlockBits, index%BlockBits
	if block >= len(c) {
		return false
	}
	return (c[block]>>uint(bit))&1 == 1
}

// Count returns the number of active outputs.
func (c Continuity) Count() int {
	n := 0
	for _, block := range c {
		for ; block != 0; block &= block - 1 {
			n++
		}
	}
	return n
}

// UnmarshalJSON accepts blocks as JSON numbers or decimal strings. Numbers are parsed
// straight into uint64 so values above 2^53 keep every bit.
func (c *Continuity) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse continuity: %w", err)
	}
	out := make(Continuity, len(raw))
	for i, r := range raw {
		s := string(r)
		if len(s) >= 2 && s[0] == '"' {
			if err := json.Unmarshal(r, &s); err != nil {
				return fmt.Errorf("failed to parse continuity block %d: %w", i, err)
			}
		}
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return fmt.Errorf("failed to parse continuity block %d: %w", i, err)
		}
		out[i] = v
	}
	*c = out
	return nil
}
