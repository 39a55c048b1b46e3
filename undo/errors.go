package undo

import "github.com/rony4d/go-ethrelay/relayerr"

var (
	ErrProofMissing    = relayerr.New(relayerr.InputRejected, "ProofMissing", "transaction not proven with metadata at this block")
	ErrNotSender       = relayerr.New(relayerr.InputRejected, "NotSender", "requester is not the transaction sender")
	ErrNotPoolTransfer = relayerr.New(relayerr.InputRejected, "NotPoolTransfer", "transaction does not pay the pool")
	ErrOutsideWindow   = relayerr.New(relayerr.InputRejected, "OutsideWindow", "outside the undo window")
	ErrAmountMismatch  = relayerr.New(relayerr.ProofRejected, "AmountMismatch", "amount differs from the proven transfer")
	ErrFeeTooLow       = relayerr.New(relayerr.EconomicGating, "FeeTooLow", "verification fee too low")
	ErrAlreadyUndone   = relayerr.New(relayerr.Replay, "AlreadyUndone", "transfer already undone")
	ErrLedgerRejected  = relayerr.New(relayerr.Unknown, "LedgerRejected", "ledger rejected the transfer")
)
