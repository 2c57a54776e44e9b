package core

import (
	"crypto/sha256"

	"github.com/fxamacker/cbor/v2"
)

// OperationKind tags the variant held by a ConsensusOperation.
type OperationKind int

const (
	OpCollectionCreate OperationKind = iota
	OpCollectionUpdate
	OpCollectionDelete
	OpChangeAliases
	OpAddPeer
)

// AliasActionKind tags one step within a ChangeAliases operation.
type AliasActionKind int

const (
	AliasActionCreate AliasActionKind = iota
	AliasActionDelete
	AliasActionRename
)

// AliasAction is one ordered step of a ChangeAliases operation. Create
// and Rename use Alias/Collection (or Alias/NewAlias for Rename); Delete
// only needs Alias.
type AliasAction struct {
	Kind       AliasActionKind `cbor:"kind"`
	Alias      string          `cbor:"alias"`
	Collection string          `cbor:"collection,omitempty"`
	NewAlias   string          `cbor:"new_alias,omitempty"`
}

// CreateCollectionOp is the payload of OpCollectionCreate.
type CreateCollectionOp struct {
	Name       string                `cbor:"name"`
	Params     CollectionParams      `cbor:"params"`
	WAL        *WALConfigDiff        `cbor:"wal,omitempty"`
	Hnsw       *HnswConfigDiff       `cbor:"hnsw,omitempty"`
	Optimizers *OptimizersConfigDiff `cbor:"optimizers,omitempty"`
}

// UpdateCollectionOp is the payload of OpCollectionUpdate — only the
// optimizers config is mutable per §4.8.
type UpdateCollectionOp struct {
	Name       string                `cbor:"name"`
	Optimizers *OptimizersConfigDiff `cbor:"optimizers,omitempty"`
}

// DeleteCollectionOp is the payload of OpCollectionDelete.
type DeleteCollectionOp struct {
	Name string `cbor:"name"`
}

// ChangeAliasesOp is the payload of OpChangeAliases: an ordered list of
// actions applied atomically under one write-lock critical section.
type ChangeAliasesOp struct {
	Actions []AliasAction `cbor:"actions"`
}

// AddPeerOp is the payload of OpAddPeer.
type AddPeerOp struct {
	PeerID uint64 `cbor:"peer_id"`
	URI    string `cbor:"uri"`
}

// ConsensusOperation is the tagged union replicated through the Raft log
// (spec §3's "ConsensusOperation"). Exactly one of the payload pointers is
// non-nil, selected by Kind.
type ConsensusOperation struct {
	Kind AliasOrCollectionKind `cbor:"kind"`

	Create  *CreateCollectionOp `cbor:"create,omitempty"`
	Update  *UpdateCollectionOp `cbor:"update,omitempty"`
	Delete  *DeleteCollectionOp `cbor:"delete,omitempty"`
	Aliases *ChangeAliasesOp    `cbor:"aliases,omitempty"`
	AddPeer *AddPeerOp          `cbor:"add_peer,omitempty"`
}

// AliasOrCollectionKind is an alias for OperationKind kept distinct in name
// to match the field's role in ConsensusOperation.
type AliasOrCollectionKind = OperationKind

// Encode serializes the operation to CBOR — the Normal entry payload format
// per §6.
func (op *ConsensusOperation) Encode() ([]byte, error) {
	return cbor.Marshal(op)
}

// DecodeConsensusOperation parses a Normal entry's data field.
func DecodeConsensusOperation(data []byte) (*ConsensusOperation, error) {
	var op ConsensusOperation
	if err := cbor.Unmarshal(data, &op); err != nil {
		return nil, errService("decode consensus operation", err)
	}
	return &op, nil
}

// Fingerprint is the SHA-256 of the operation's canonical CBOR encoding,
// used as the correlation map key: two operations that would serialize
// identically collapse onto the same key (see DESIGN.md Open Questions on
// correlation-by-value).
func (op *ConsensusOperation) Fingerprint() ([32]byte, error) {
	data, err := op.Encode()
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(data), nil
}
