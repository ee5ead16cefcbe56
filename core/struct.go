package core

import (
	"github.com/ethereum/go-ethereum/common"
)

// Project lifecycle states. Transitions are forward-only:
// NotStarted -> InProgress -> Finished.
const (
	NotStarted Status = iota
	InProgress
	Finished
)

type Status uint32

func (s Status) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case InProgress:
		return "in_progress"
	case Finished:
		return "finished"
	}
	return "unknown"
}

// Event names appended to the registry log. One entry per successful
// mutation, committed in the same storage blob as the state change.
const (
	EventProjectCreated  = "projectcreated"
	EventProjectStarted  = "projectstarted"
	EventProjectFinished = "projectfinished"
	EventParticipated    = "participated"
	EventLotteryDrawn    = "lotterydrawn"
	EventRootSet         = "rootset"
	EventAdminChanged    = "adminchanged"
	EventClaimVerified   = "claimverified"
)

type Project struct {
	ID          uint64
	Fingerprint common.Hash
	Owner       common.Address
	TotalSupply uint64
	Status      Status
	// MerkleRoot is the zero hash until setroot stores it.
	MerkleRoot   common.Hash
	Participants []Participant
}

// Participant is one entry of the append-only registration log. The same
// address may appear more than once; the log is never deduplicated.
type Participant struct {
	Address  common.Address
	LuckyNum uint64
}

type LotteryResult struct {
	ProjectID   uint64
	MagicNumber uint64
}

type Event struct {
	Name      string
	ProjectID uint64
	// Digest carries the fingerprint or merkle root for events that have one.
	Digest []byte
	// Value carries the lucky/magic number for events that have one.
	Value uint64
}

// Registry is the full contract storage: the administrator identity, the id
// counter, all projects with their registration logs, published lottery
// results and the event log.
type Registry struct {
	Admin    string
	NextID   uint64
	Projects []Project
	Results  []LotteryResult
	Events   []Event
}
