package core

import "golang.org/x/xerrors"

// Failure taxonomy for the registry. Every mutating operation either commits
// fully or returns one of these (possibly wrapped with diagnostics) and
// leaves the storage untouched.
var (
	ErrProjectNotFound       = xerrors.New("project not found")
	ErrProjectAlreadyStarted = xerrors.New("project already started")
	ErrProjectNotInProgress  = xerrors.New("project not in progress")
	ErrProjectNotFinished    = xerrors.New("project not finished")
	ErrTotalSupplyZero       = xerrors.New("total supply is zero")
	ErrOffsetOutOfBounds     = xerrors.New("offset out of bounds")
	ErrMerkleRootAlreadySet  = xerrors.New("merkle root already set")
	ErrMerkleRootNotSet      = xerrors.New("merkle root not set")
	ErrMerkleProofInvalid    = xerrors.New("merkle proof invalid")
	ErrLotteryNotDrawn       = xerrors.New("lottery not drawn")
	ErrParticipantNotFound   = xerrors.New("participant not found")
	ErrNotAdmin              = xerrors.New("not the administrator")
)
