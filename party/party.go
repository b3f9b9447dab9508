// Package party defines participant identifiers shared by every protocol layer.
//
// Participants are numbered from 1. The zero ID is reserved for the
// coordinator endpoint that drives a session but holds no key share.
package party

import (
	"encoding/binary"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ID identifies a participant within a threshold group.
type ID uint16

// Coordinator is the endpoint ID of the orchestrating party.
const Coordinator ID = 0

// Bytes returns the big-endian encoding of the ID.
func (id ID) Bytes() []byte {
	return binary.BigEndian.AppendUint16(nil, uint16(id))
}

func (id ID) String() string {
	return strconv.Itoa(int(id))
}

// Set is an ordered, duplicate-free list of participant IDs.
type Set []ID

// NewSet returns a sorted copy of ids. It fails on duplicates or the
// reserved coordinator ID.
func NewSet(ids ...ID) (Set, error) {
	s := slices.Clone(ids)
	slices.Sort(s)
	for i, id := range s {
		if id == Coordinator {
			return nil, fmt.Errorf("participant id %d is reserved", Coordinator)
		}
		if i > 0 && s[i-1] == id {
			return nil, fmt.Errorf("duplicate participant id %d", id)
		}
	}
	return Set(s), nil
}

// Contains reports whether id is a member of s.
func (s Set) Contains(id ID) bool {
	_, ok := slices.BinarySearch(s, id)
	return ok
}

// Without returns a copy of s with the given ids removed.
func (s Set) Without(ids ...ID) Set {
	out := make(Set, 0, len(s))
	for _, id := range s {
		if !slices.Contains(ids, id) {
			out = append(out, id)
		}
	}
	return out
}

// Equal reports whether s and o hold the same members.
func (s Set) Equal(o Set) bool {
	return slices.Equal(s, o)
}

// Bytes returns a length-prefixed encoding of the set, used to bind a
// signer subset into transcripts.
func (s Set) Bytes() []byte {
	out := binary.BigEndian.AppendUint16(nil, uint16(len(s)))
	for _, id := range s {
		out = append(out, id.Bytes()...)
	}
	return out
}

func (s Set) String() string {
	parts := make([]string, len(s))
	for i, id := range s {
		parts[i] = id.String()
	}
	return "{" + strings.Join(parts, ",") + "}"
}
