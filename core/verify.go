package core

import (
	"github.com/dedis/fairticket/merkle"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/xerrors"
)

// VerifyMembership checks that the address belongs to the winner set the
// project's merkle root commits to. The leaf is keccak256 of the address. A
// failed check is an error carrying the diagnostics, never a silent false.
func (r *Registry) VerifyMembership(id uint64, addr common.Address,
	proof *merkle.Proof) error {
	p, err := r.project(id)
	if err != nil {
		return err
	}
	if p.MerkleRoot == (common.Hash{}) {
		return xerrors.Errorf("project %d: %w", id, ErrMerkleRootNotSet)
	}
	leaf := merkle.LeafAddress(addr)
	if !merkle.Verify(p.MerkleRoot.Bytes(), leaf, proof) {
		return xerrors.Errorf("project %d address %s leaf %x siblings %d: %w",
			id, addr.Hex(), leaf, len(proof.Siblings), ErrMerkleProofInvalid)
	}
	return nil
}
