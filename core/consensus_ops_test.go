package core

import "testing"

func TestConsensusOperation_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		op   *ConsensusOperation
	}{
		{
			name: "create",
			op: &ConsensusOperation{
				Kind: OpCollectionCreate,
				Create: &CreateCollectionOp{
					Name:   "widgets",
					Params: CollectionParams{VectorSize: 128, Distance: DistanceCosine, ShardNumber: 2},
				},
			},
		},
		{
			name: "update",
			op: &ConsensusOperation{
				Kind: OpCollectionUpdate,
				Update: &UpdateCollectionOp{
					Name: "widgets",
				},
			},
		},
		{
			name: "delete",
			op:   &ConsensusOperation{Kind: OpCollectionDelete, Delete: &DeleteCollectionOp{Name: "widgets"}},
		},
		{
			name: "change_aliases",
			op: &ConsensusOperation{
				Kind: OpChangeAliases,
				Aliases: &ChangeAliasesOp{
					Actions: []AliasAction{
						{Kind: AliasActionCreate, Alias: "a1", Collection: "widgets"},
						{Kind: AliasActionDelete, Alias: "a2"},
						{Kind: AliasActionRename, Alias: "a3", NewAlias: "a4"},
					},
				},
			},
		},
		{
			name: "add_peer",
			op:   &ConsensusOperation{Kind: OpAddPeer, AddPeer: &AddPeerOp{PeerID: 7, URI: "http://peer-7:6335"}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data, err := tc.op.Encode()
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			decoded, err := DecodeConsensusOperation(data)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if decoded.Kind != tc.op.Kind {
				t.Fatalf("decoded kind = %v, want %v", decoded.Kind, tc.op.Kind)
			}

			redata, err := decoded.Encode()
			if err != nil {
				t.Fatalf("re-encode: %v", err)
			}
			if string(redata) != string(data) {
				t.Fatalf("round-trip encoding is not byte-stable")
			}
		})
	}
}

func TestConsensusOperation_FingerprintEqualForEqualValues(t *testing.T) {
	a := &ConsensusOperation{Kind: OpCollectionDelete, Delete: &DeleteCollectionOp{Name: "widgets"}}
	b := &ConsensusOperation{Kind: OpCollectionDelete, Delete: &DeleteCollectionOp{Name: "widgets"}}
	c := &ConsensusOperation{Kind: OpCollectionDelete, Delete: &DeleteCollectionOp{Name: "gadgets"}}

	fpA, err := a.Fingerprint()
	if err != nil {
		t.Fatalf("Fingerprint a: %v", err)
	}
	fpB, err := b.Fingerprint()
	if err != nil {
		t.Fatalf("Fingerprint b: %v", err)
	}
	fpC, err := c.Fingerprint()
	if err != nil {
		t.Fatalf("Fingerprint c: %v", err)
	}

	if fpA != fpB {
		t.Fatalf("equal operations produced different fingerprints")
	}
	if fpA == fpC {
		t.Fatalf("different operations produced the same fingerprint")
	}
}
