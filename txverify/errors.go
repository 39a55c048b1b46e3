package txverify

import "github.com/rony4d/go-ethrelay/relayerr"

var (
	ErrHeaderNotFinal = relayerr.New(relayerr.InputRejected, "HeaderNotFinal", "header not final")
	ErrUnknownProof   = relayerr.New(relayerr.InputRejected, "UnknownProof", "no proof for transaction")
	ErrNotFound       = relayerr.New(relayerr.InputRejected, "NotFound", "transaction metadata not found")

	ErrInvalidProof     = relayerr.New(relayerr.ProofRejected, "InvalidProof", "invalid inclusion proof")
	ErrMetadataMismatch = relayerr.New(relayerr.ProofRejected, "MetadataMismatch", "metadata does not match proven transaction")

	ErrDuplicateProof     = relayerr.New(relayerr.Replay, "DuplicateProof", "transaction already proven")
	ErrMetadataAlreadySet = relayerr.New(relayerr.Replay, "MetadataAlreadySet", "metadata already set")
)
