package relaydb

import (
	"github.com/Fantom-foundation/lachesis-base/common/bigendian"
	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
)

// The fields below define the low level database schema prefixing.
var (
	rulesKey   = []byte("RelayRules")
	genesisKey = []byte("GenesisNumber")
	headKey    = []byte("LastStored")

	epochPrefix     = []byte("e") // epochPrefix + epoch (uint32 big endian) -> EpochMeta
	nodePrefix      = []byte("n") // nodePrefix + epoch + index (uint64 big endian) -> node hash
	headerPrefix    = []byte("h") // headerPrefix + hash -> RelayedHeader
	canonicalPrefix = []byte("c") // canonicalPrefix + number (uint64 big endian) -> hash
	stakePrefix     = []byte("s") // stakePrefix + address -> StakeDeposit
	txPrefix        = []byte("t") // txPrefix + tx hash -> TxRecord
	undoPrefix      = []byte("u") // undoPrefix + tx hash -> UndoRecord
)

func concat(parts ...[]byte) []byte {
	var n int
	for _, p := range parts {
		n += len(p)
	}
	key := make([]byte, 0, n)
	for _, p := range parts {
		key = append(key, p...)
	}
	return key
}

func epochKey(epoch idx.Epoch) []byte {
	return concat(epochPrefix, bigendian.Uint32ToBytes(uint32(epoch)))
}

func nodeKey(epoch idx.Epoch, index uint64) []byte {
	return concat(nodePrefix, bigendian.Uint32ToBytes(uint32(epoch)), bigendian.Uint64ToBytes(index))
}

func headerKey(hash common.Hash) []byte {
	return concat(headerPrefix, hash.Bytes())
}

func canonicalKey(number idx.Block) []byte {
	return concat(canonicalPrefix, bigendian.Uint64ToBytes(uint64(number)))
}

func stakeKey(addr common.Address) []byte {
	return concat(stakePrefix, addr.Bytes())
}

func txKey(hash common.Hash) []byte {
	return concat(txPrefix, hash.Bytes())
}

func undoKey(hash common.Hash) []byte {
	return concat(undoPrefix, hash.Bytes())
}
