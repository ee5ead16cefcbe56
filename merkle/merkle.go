// Package merkle implements the sorted-pair keccak256 merkle tree used to
// commit to a winner set. The contract side only verifies membership; the
// builder exists for the off-chain role and for tests.
package merkle

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/xerrors"
)

// Proof is the sibling path from a leaf to the root, bottom-up.
type Proof struct {
	Siblings [][]byte
}

// LeafAddress derives the leaf value for an address: keccak256 over the raw
// 20 bytes, no extra salt.
func LeafAddress(addr common.Address) []byte {
	return crypto.Keccak256(addr.Bytes())
}

// hashPair hashes the byte-wise sorted concatenation of two nodes. Sorting
// makes the proof order-independent, which is what the off-chain builder
// produces.
func hashPair(a, b []byte) []byte {
	if bytes.Compare(a, b) > 0 {
		a, b = b, a
	}
	return crypto.Keccak256(a, b)
}

// Tree holds every level, leaves first.
type Tree struct {
	levels [][][]byte
}

// NewTree builds a tree over the given leaves. An odd node at the end of a
// level is promoted to the next level unhashed.
func NewTree(leaves [][]byte) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, xerrors.New("merkle tree needs at least one leaf")
	}
	level := make([][]byte, len(leaves))
	for i, leaf := range leaves {
		level[i] = append([]byte{}, leaf...)
	}
	t := &Tree{levels: [][][]byte{level}}
	for len(level) > 1 {
		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				break
			}
			next = append(next, hashPair(level[i], level[i+1]))
		}
		t.levels = append(t.levels, next)
		level = next
	}
	return t, nil
}

// NewTreeAddresses builds a tree over the leaf hashes of the addresses.
func NewTreeAddresses(addrs []common.Address) (*Tree, error) {
	leaves := make([][]byte, len(addrs))
	for i, addr := range addrs {
		leaves[i] = LeafAddress(addr)
	}
	return NewTree(leaves)
}

func (t *Tree) Root() []byte {
	top := t.levels[len(t.levels)-1]
	return append([]byte{}, top[0]...)
}

// Proof returns the sibling path for the leaf at the given index.
func (t *Tree) Proof(index int) (*Proof, error) {
	if index < 0 || index >= len(t.levels[0]) {
		return nil, xerrors.Errorf("leaf index %d out of range", index)
	}
	proof := &Proof{}
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := index ^ 1
		if sibling < len(level) {
			proof.Siblings = append(proof.Siblings,
				append([]byte{}, level[sibling]...))
		}
		index /= 2
	}
	return proof, nil
}

// ProofForLeaf locates the first occurrence of the leaf and builds its proof.
func (t *Tree) ProofForLeaf(leaf []byte) (*Proof, error) {
	for i, l := range t.levels[0] {
		if bytes.Equal(l, leaf) {
			return t.Proof(i)
		}
	}
	return nil, xerrors.Errorf("leaf %x not in tree", leaf)
}

// Verify walks the proof from the leaf and compares the result with the
// root. It reports the outcome; callers decide how a mismatch fails.
func Verify(root, leaf []byte, proof *Proof) bool {
	node := leaf
	for _, sibling := range proof.Siblings {
		node = hashPair(node, sibling)
	}
	return bytes.Equal(node, root)
}
