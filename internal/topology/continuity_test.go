package topology

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContinuityActive(t *testing.T) {
	c := Continuity{0b101, 0}

	assert.True(t, c.Active(0))
	assert.False(t, c.Active(1))
	assert.True(t, c.Active(2))
	assert.False(t, c.Active(64))

	c = Continuity{0, 1}
	assert.True(t, c.Active(64), "index 64 reads block 1 bit 0")
	assert.False(t, c.Active(0))
}

func TestContinuityHighBits(t *testing.T) {
	c := Continuity{1 << 63, math.MaxUint64}

	assert.True(t, c.Active(63))
	assert.False(t, c.Active(62))
	assert.True(t, c.Active(127))
	assert.False(t, c.Active(128))
	assert.False(t, c.Active(-1))
	assert.Equal(t, 65, c.Count())
}

func TestContinuityUnmarshal(t *testing.T) {
	var c Continuity
	require.NoError(t, json.Unmarshal([]byte(`[18446744073709551615, "9223372036854775809"]`), &c))

	require.Len(t, c, 2)
	assert.Equal(t, uint64(math.MaxUint64), c[0])
	assert.Equal(t, uint64(1<<63|1), c[1])
	assert.True(t, c.Active(64))
	assert.True(t, c.Active(127))
	assert.False(t, c.Active(65))
}

func TestContinuityUnmarshalInvalid(t *testing.T) {
	var c Continuity
	assert.Error(t, json.Unmarshal([]byte(`[-1]`), &c))
	assert.Error(t, json.Unmarshal([]byte(`[1.5]`), &c))
	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &c))

	require.NoError(t, json.Unmarshal([]byte(`null`), &c))
	assert.Empty(t, c)
}
