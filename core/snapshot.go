package core

import "github.com/fxamacker/cbor/v2"

// StateSnapshot is the point-in-time image of collections, aliases, and peer
// addresses used to bootstrap a lagging peer (§3, §4.7). Its wire metadata
// (conf_state, commit_index, term) travels alongside this payload in the
// raft snapshot envelope, not inside it.
type StateSnapshot struct {
	Collections map[string]CollectionState `cbor:"collections"`
	Aliases     map[string]string          `cbor:"aliases"`
	AddressByID map[uint64]string          `cbor:"address_by_id"`
}

// Encode serializes the snapshot to CBOR.
func (s *StateSnapshot) Encode() ([]byte, error) {
	return cbor.Marshal(s)
}

// DecodeStateSnapshot parses a raft snapshot's data payload.
func DecodeStateSnapshot(data []byte) (*StateSnapshot, error) {
	var s StateSnapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, errService("decode state snapshot", err)
	}
	return &s, nil
}
