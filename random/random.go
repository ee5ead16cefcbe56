// Package random supplies the magic-number capability for the lottery. The
// contract never calls it: the drawing client does, and ships the value in
// the invoke instruction so that every node replays the same state change. A
// production deployment swaps the Source for a verifiable beacon.
package random

import (
	"encoding/binary"

	"go.dedis.ch/kyber/v3/util/random"
	"go.dedis.ch/kyber/v3/xof/blake2xb"
	"golang.org/x/xerrors"
)

// Source returns a numeric value on demand. No side effects, no failure
// modes.
type Source interface {
	Next() uint64
}

// Fixed always returns the same value, standing in for the placeholder
// constant of the original contract.
type Fixed struct {
	Value uint64
}

func (f Fixed) Next() uint64 {
	return f.Value
}

// Stream draws values from a blake2xb XOF. The same seed always yields the
// same sequence, so a drawing can be re-derived by anyone holding the seed.
type Stream struct {
	xof interface {
		Read([]byte) (int, error)
	}
}

func NewStream(seed []byte) (*Stream, error) {
	if len(seed) == 0 {
		return nil, xerrors.New("empty seed")
	}
	return &Stream{xof: blake2xb.New(seed)}, nil
}

func (s *Stream) Next() uint64 {
	buf := make([]byte, 8)
	s.xof.Read(buf)
	return binary.LittleEndian.Uint64(buf)
}

// Crypto draws from the kyber system randomness. Not reproducible; handy for
// local runs where verifiability does not matter.
type Crypto struct{}

func (Crypto) Next() uint64 {
	buf := random.Bits(64, true, random.New())
	return binary.LittleEndian.Uint64(buf)
}
