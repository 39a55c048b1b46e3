package inter

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-ethrelay/utils/cser"
)

func fakeRelayedHeader() *RelayedHeader {
	submitted := FromUnix(1600000000)
	return &RelayedHeader{
		Number:          30001,
		Hash:            common.HexToHash("0xaa01"),
		ParentHash:      common.HexToHash("0xaa00"),
		Difficulty:      big.NewInt(131072),
		TotalDifficulty: new(big.Int).Lsh(big.NewInt(1), 70),
		Time:            1599999990,
		GasLimit:        15000000,
		TxHash:          common.HexToHash("0x56e8"),
		Submitter:       common.HexToAddress("0x3e8"),
		SubmittedAt:     submitted,
		LockedUntil:     submitted + Timestamp(5*time.Minute),
		State:           Pending,
		Raw:             []byte{0xf9, 0x02, 0x10},
	}
}

func requireSameHeader(t *testing.T, want, got *RelayedHeader) {
	t.Helper()
	require.Zero(t, want.Difficulty.Cmp(got.Difficulty))
	require.Zero(t, want.TotalDifficulty.Cmp(got.TotalDifficulty))
	w, g := *want, *got
	w.Difficulty, w.TotalDifficulty = nil, nil
	g.Difficulty, g.TotalDifficulty = nil, nil
	require.Equal(t, w, g)
}

func TestRelayedHeader_binary(t *testing.T) {
	pending := fakeRelayedHeader()
	final := fakeRelayedHeader()
	final.State = Final
	final.FinalizedAt = final.LockedUntil + Timestamp(time.Second)
	// installed by a clock that reads zero
	genesis := fakeRelayedHeader()
	genesis.State = Final
	genesis.SubmittedAt, genesis.LockedUntil, genesis.FinalizedAt = 0, 0, 0

	for _, h := range []*RelayedHeader{pending, final, genesis} {
		enc, err := h.MarshalBinary()
		require.NoError(t, err)

		got := new(RelayedHeader)
		require.NoError(t, got.UnmarshalBinary(enc))
		requireSameHeader(t, h, got)

		// compact form beats the generic record encoding
		rlpEnc, err := rlp.EncodeToBytes(h)
		require.NoError(t, err)
		require.Less(t, len(enc), len(rlpEnc))
	}
}

func TestRelayedHeader_marshalRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(h *RelayedHeader)
	}{
		{"lock before submission", func(h *RelayedHeader) { h.LockedUntil = h.SubmittedAt - 1 }},
		{"unknown state", func(h *RelayedHeader) { h.State = Disputed + 1 }},
		{"oversized raw header", func(h *RelayedHeader) { h.Raw = make([]byte, MaxRawHeaderSize+1) }},
		{"finalization time on a pending header", func(h *RelayedHeader) { h.FinalizedAt = h.LockedUntil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := fakeRelayedHeader()
			tt.mutate(h)
			_, err := h.MarshalBinary()
			require.ErrorIs(t, err, ErrSerMalformedHeader)
		})
	}
}

func TestRelayedHeader_unmarshalRejects(t *testing.T) {
	enc, err := fakeRelayedHeader().MarshalBinary()
	require.NoError(t, err)

	bumped := append([]byte{}, enc...)
	bumped[0] = headerRecordVersion + 1
	require.ErrorIs(t, new(RelayedHeader).UnmarshalBinary(bumped), ErrUnknownVersion)

	require.Error(t, new(RelayedHeader).UnmarshalBinary(enc[:len(enc)/2]))
	require.Equal(t, cser.ErrMalformedEncoding, new(RelayedHeader).UnmarshalBinary(nil))
}
