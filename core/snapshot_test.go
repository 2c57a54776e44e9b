package core

import "testing"

func TestStateSnapshot_RoundTrip(t *testing.T) {
	s := &StateSnapshot{
		Collections: map[string]CollectionState{"c1": StateCreated, "c2": StateMutated},
		Aliases:     map[string]string{"a1": "c1"},
		AddressByID: map[uint64]string{1: "http://peer-1:6335"},
	}

	data, err := s.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := DecodeStateSnapshot(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if len(decoded.Collections) != 2 || decoded.Collections["c1"] != StateCreated || decoded.Collections["c2"] != StateMutated {
		t.Fatalf("collections did not round-trip: %+v", decoded.Collections)
	}
	if decoded.Aliases["a1"] != "c1" {
		t.Fatalf("aliases did not round-trip: %+v", decoded.Aliases)
	}
	if decoded.AddressByID[1] != "http://peer-1:6335" {
		t.Fatalf("address_by_id did not round-trip: %+v", decoded.AddressByID)
	}
}
