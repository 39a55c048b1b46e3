// Package relayapi exposes a relay node over JSON-RPC in the "relay"
// namespace. Every relay operation has one method; errors carry the
// JSON-RPC code of their category.
package relayapi

import (
	"context"
	"math/big"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/rony4d/go-ethrelay/integration"
	"github.com/rony4d/go-ethrelay/inter"
)

// Namespace of the relay API.
const Namespace = "relay"

// APIs returns the RPC services of a node.
func APIs(node *integration.Node) []rpc.API {
	return []rpc.API{
		{
			Namespace: Namespace,
			Version:   "1.0",
			Service:   NewPublicRelayAPI(node),
			Public:    true,
		},
	}
}

// PublicRelayAPI serves relay_* requests.
type PublicRelayAPI struct {
	node *integration.Node
}

// NewPublicRelayAPI creates the API of a node.
func NewPublicRelayAPI(node *integration.Node) *PublicRelayAPI {
	return &PublicRelayAPI{node: node}
}

// DatasetChunkArgs is the JSON form of a dataset chunk.
type DatasetChunkArgs struct {
	Epoch                   hexutil.Uint64 `json:"epoch"`
	FullSizeIn128Resolution hexutil.Uint64 `json:"fullSizeIn128Resolution"`
	BranchDepth             hexutil.Uint64 `json:"branchDepth"`
	Start                   hexutil.Uint64 `json:"start"`
	Count                   hexutil.Uint64 `json:"count"`
	Nodes                   []common.Hash  `json:"nodes"`
}

// NewDatasetChunkArgs converts a chunk into its JSON form.
func NewDatasetChunkArgs(c inter.DatasetChunk) DatasetChunkArgs {
	return DatasetChunkArgs{
		Epoch:                   hexutil.Uint64(c.Epoch),
		FullSizeIn128Resolution: hexutil.Uint64(c.FullSizeIn128Resolution),
		BranchDepth:             hexutil.Uint64(c.BranchDepth),
		Start:                   hexutil.Uint64(c.Start),
		Count:                   hexutil.Uint64(c.Count),
		Nodes:                   c.Nodes,
	}
}

// SubmitDatasetChunk stores the next chunk of an epoch's dataset.
func (api *PublicRelayAPI) SubmitDatasetChunk(args DatasetChunkArgs) error {
	return wrapError(api.node.Datasets.SubmitChunk(inter.DatasetChunk{
		Epoch:                   idx.Epoch(args.Epoch),
		FullSizeIn128Resolution: uint64(args.FullSizeIn128Resolution),
		BranchDepth:             uint64(args.BranchDepth),
		Start:                   uint64(args.Start),
		Count:                   uint64(args.Count),
		Nodes:                   args.Nodes,
	}))
}

// IsDatasetComplete tells whether every node of an epoch is stored.
func (api *PublicRelayAPI) IsDatasetComplete(epoch hexutil.Uint64) (bool, error) {
	ok, err := api.node.Datasets.IsComplete(idx.Epoch(epoch))
	return ok, wrapError(err)
}

// DepositStake credits a submitter's stake.
func (api *PublicRelayAPI) DepositStake(submitter common.Address, amount *hexutil.Big) error {
	return wrapError(api.node.Stakes.Deposit(submitter, (*big.Int)(amount)))
}

// RPCStake is the JSON form of a stake deposit.
type RPCStake struct {
	Submitter     common.Address `json:"submitter"`
	Amount        *hexutil.Big   `json:"amount"`
	CoveredBlocks hexutil.Uint64 `json:"coveredBlocks"`
}

// GetStake returns a submitter's deposit.
func (api *PublicRelayAPI) GetStake(submitter common.Address) (*RPCStake, error) {
	s, err := api.node.Stakes.StakeOf(submitter)
	if err != nil {
		return nil, wrapError(err)
	}
	return &RPCStake{
		Submitter:     s.Submitter,
		Amount:        (*hexutil.Big)(s.Amount),
		CoveredBlocks: hexutil.Uint64(s.CoveredBlocks),
	}, nil
}

// SubmitHeader relays a PoW header with its dataset lookup.
func (api *PublicRelayAPI) SubmitHeader(submitter common.Address, number hexutil.Uint64, raw hexutil.Bytes, lookup inter.DatasetLookup) error {
	return wrapError(api.node.Headers.SubmitHeader(submitter, idx.Block(number), raw, lookup))
}

// Finalize finalizes the canonical header at number and its pending ancestors.
func (api *PublicRelayAPI) Finalize(number hexutil.Uint64) error {
	return wrapError(api.node.Headers.Finalize(idx.Block(number)))
}

// IsHeaderStored tells whether a canonical header exists at number.
func (api *PublicRelayAPI) IsHeaderStored(number hexutil.Uint64) (bool, error) {
	ok, err := api.node.Headers.IsHeaderStored(idx.Block(number))
	return ok, wrapError(err)
}

// LastStored returns the number of the canonical head.
func (api *PublicRelayAPI) LastStored() (hexutil.Uint64, error) {
	last, err := api.node.Headers.LastStored()
	return hexutil.Uint64(last), wrapError(err)
}

// RPCHeader is the JSON form of a relayed header.
type RPCHeader struct {
	Number           hexutil.Uint64 `json:"number"`
	Hash             common.Hash    `json:"hash"`
	ParentHash       common.Hash    `json:"parentHash"`
	Difficulty       *hexutil.Big   `json:"difficulty"`
	TotalDifficulty  *hexutil.Big   `json:"totalDifficulty"`
	Timestamp        hexutil.Uint64 `json:"timestamp"`
	TransactionsRoot common.Hash    `json:"transactionsRoot"`
	Submitter        common.Address `json:"submitter"`
	LockedUntil      hexutil.Uint64 `json:"lockedUntil"` // relay time, unix seconds
	FinalizedAt      hexutil.Uint64 `json:"finalizedAt"` // zero until final
	State            string         `json:"state"`
}

func newRPCHeader(h *inter.RelayedHeader) *RPCHeader {
	return &RPCHeader{
		Number:           hexutil.Uint64(h.Number),
		Hash:             h.Hash,
		ParentHash:       h.ParentHash,
		Difficulty:       (*hexutil.Big)(h.Difficulty),
		TotalDifficulty:  (*hexutil.Big)(h.TotalDifficulty),
		Timestamp:        hexutil.Uint64(h.Time),
		TransactionsRoot: h.TxHash,
		Submitter:        h.Submitter,
		LockedUntil:      hexutil.Uint64(h.LockedUntil.Unix()),
		FinalizedAt:      hexutil.Uint64(h.FinalizedAt.Unix()),
		State:            h.State.String(),
	}
}

// GetHeaderByNumber returns the canonical header at number, nil if none.
func (api *PublicRelayAPI) GetHeaderByNumber(number hexutil.Uint64) (*RPCHeader, error) {
	h, err := api.node.Headers.CanonicalHeader(idx.Block(number))
	if err != nil || h == nil {
		return nil, wrapError(err)
	}
	return newRPCHeader(h), nil
}

// GetHeaderByHash returns any stored header, canonical or not, nil if unknown.
func (api *PublicRelayAPI) GetHeaderByHash(hash common.Hash) (*RPCHeader, error) {
	h, err := api.node.Headers.Header(hash)
	if err != nil || h == nil {
		return nil, wrapError(err)
	}
	return newRPCHeader(h), nil
}

// SubmitTxProof records a transaction as included in a final header.
func (api *PublicRelayAPI) SubmitTxProof(proof inter.TxProof) error {
	return wrapError(api.node.Txs.SubmitTxProof(proof))
}

// SubmitTxMetaData attaches sender, recipient and input to a proven transaction.
func (api *PublicRelayAPI) SubmitTxMetaData(txHash common.Hash, meta inter.TxMetadata) error {
	return wrapError(api.node.Txs.SubmitTxMetaData(txHash, meta))
}

// GetTxMetaData returns the metadata of a proven transaction.
func (api *PublicRelayAPI) GetTxMetaData(txHash common.Hash) (*inter.TxMetadata, error) {
	meta, err := api.node.Txs.GetTxMetaData(txHash)
	if err != nil {
		return nil, wrapError(err)
	}
	return &meta, nil
}

// GetRequiredVerificationFee returns the fee an undo must attach.
func (api *PublicRelayAPI) GetRequiredVerificationFee() *hexutil.Big {
	return (*hexutil.Big)(api.node.Txs.GetRequiredVerificationFee())
}

// UndoArgs is an undo request.
type UndoArgs struct {
	TxHash      common.Hash    `json:"txHash"`
	Amount      *hexutil.Big   `json:"amount"`
	RequestedBy common.Address `json:"requestedBy"`
	BlockNumber hexutil.Uint64 `json:"blockNumber"`
	Fee         *hexutil.Big   `json:"fee"`
}

// UndoTransfer reverses a proven transfer to the pool.
func (api *PublicRelayAPI) UndoTransfer(args UndoArgs) error {
	ticket := inter.UndoTicket{
		TxHash:      args.TxHash,
		Amount:      (*big.Int)(args.Amount),
		RequestedBy: args.RequestedBy,
	}
	return wrapError(api.node.Undo.UndoTransfer(ticket, idx.Block(args.BlockNumber), (*big.Int)(args.Fee)))
}

// IsUndone tells whether a transaction was undone.
func (api *PublicRelayAPI) IsUndone(txHash common.Hash) (bool, error) {
	done, err := api.node.Undo.IsUndone(txHash)
	return done, wrapError(err)
}

// SubmittedBlocks streams an event per accepted header.
func (api *PublicRelayAPI) SubmittedBlocks(ctx context.Context) (*rpc.Subscription, error) {
	notifier, supported := rpc.NotifierFromContext(ctx)
	if !supported {
		return &rpc.Subscription{}, rpc.ErrNotificationsUnsupported
	}
	rpcSub := notifier.CreateSubscription()

	go func() {
		events := make(chan inter.SubmittedBlock, 128)
		sub := api.node.Headers.SubscribeSubmittedBlock(events)
		defer sub.Unsubscribe()

		for {
			select {
			case ev := <-events:
				notifier.Notify(rpcSub.ID, ev)
			case <-rpcSub.Err():
				return
			case <-notifier.Closed():
				return
			case <-sub.Err():
				return
			}
		}
	}()
	return rpcSub, nil
}

// FinalizedHeaders streams an event per finalized header.
func (api *PublicRelayAPI) FinalizedHeaders(ctx context.Context) (*rpc.Subscription, error) {
	notifier, supported := rpc.NotifierFromContext(ctx)
	if !supported {
		return &rpc.Subscription{}, rpc.ErrNotificationsUnsupported
	}
	rpcSub := notifier.CreateSubscription()

	go func() {
		events := make(chan inter.HeaderFinalized, 128)
		sub := api.node.Headers.SubscribeHeaderFinalized(events)
		defer sub.Unsubscribe()

		for {
			select {
			case ev := <-events:
				notifier.Notify(rpcSub.ID, ev)
			case <-rpcSub.Err():
				return
			case <-notifier.Closed():
				return
			case <-sub.Err():
				return
			}
		}
	}()
	return rpcSub, nil
}

// UndoEvents streams an event per successful undo.
func (api *PublicRelayAPI) UndoEvents(ctx context.Context) (*rpc.Subscription, error) {
	notifier, supported := rpc.NotifierFromContext(ctx)
	if !supported {
		return &rpc.Subscription{}, rpc.ErrNotificationsUnsupported
	}
	rpcSub := notifier.CreateSubscription()

	go func() {
		events := make(chan inter.UndoSucceeded, 128)
		sub := api.node.Undo.SubscribeUndoSucceeded(events)
		defer sub.Unsubscribe()

		for {
			select {
			case ev := <-events:
				notifier.Notify(rpcSub.ID, ev)
			case <-rpcSub.Err():
				return
			case <-notifier.Closed():
				return
			case <-sub.Err():
				return
			}
		}
	}()
	return rpcSub, nil
}
