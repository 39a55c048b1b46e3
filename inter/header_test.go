package inter

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelayedHeader_Beats(t *testing.T) {
	low := common.HexToHash("0x01")
	high := common.HexToHash("0xff")

	tests := []struct {
		name  string
		a, b  *RelayedHeader
		aWins bool
	}{
		{
			name:  "higher TD wins",
			a:     &RelayedHeader{Hash: high, TotalDifficulty: big.NewInt(11)},
			b:     &RelayedHeader{Hash: low, TotalDifficulty: big.NewInt(10)},
			aWins: true,
		},
		{
			name:  "lower TD loses",
			a:     &RelayedHeader{Hash: low, TotalDifficulty: big.NewInt(9)},
			b:     &RelayedHeader{Hash: high, TotalDifficulty: big.NewInt(10)},
			aWins: false,
		},
		{
			name:  "tie goes to lower hash",
			a:     &RelayedHeader{Hash: low, TotalDifficulty: big.NewInt(10)},
			b:     &RelayedHeader{Hash: high, TotalDifficulty: big.NewInt(10)},
			aWins: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.aWins, tt.a.Beats(tt.b))
			assert.Equal(t, !tt.aWins, tt.b.Beats(tt.a))
		})
	}
}

func TestRelayedHeader_TD(t *testing.T) {
	h := &RelayedHeader{TotalDifficulty: big.NewInt(123456)}
	require.Equal(t, uint64(123456), h.TD().Uint64())
}

func TestHeaderState_String(t *testing.T) {
	require.Equal(t, "pending", Pending.String())
	require.Equal(t, "final", Final.String())
	require.Equal(t, "disputed", Disputed.String())
	require.Equal(t, "unknown", HeaderState(9).String())
}

func TestExpectedNodes(t *testing.T) {
	tests := []struct {
		rows, depth, want uint64
	}{
		{64, 0, 64},
		{64, 3, 8},
		{65, 3, 9},
		{1, 5, 1},
		{0, 2, 0},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, ExpectedNodes(tt.rows, tt.depth), "rows=%d depth=%d", tt.rows, tt.depth)
	}
}

func TestTimestamp(t *testing.T) {
	ts := FromUnix(1608600000)
	require.Equal(t, int64(1608600000), ts.Unix())
	require.Equal(t, ts, FromTime(ts.Time()))
	require.Equal(t, 5*time.Minute, Timestamp(5*time.Minute).Duration())
	require.Len(t, ts.Bytes(), 8)
}
