package registry

import (
	"github.com/dedis/fairticket/core"
	"github.com/ethereum/go-ethereum/common"
	"go.dedis.ch/cothority/v3/byzcoin"
	"go.dedis.ch/cothority/v3/skipchain"
)

type GetProjectRequest struct {
	ByzID     skipchain.SkipBlockID
	IID       byzcoin.InstanceID
	ProjectID uint64
}

type GetProjectReply struct {
	Project core.Project
}

type GetParticipantRequest struct {
	ByzID     skipchain.SkipBlockID
	IID       byzcoin.InstanceID
	ProjectID uint64
	Address   common.Address
}

type GetParticipantReply struct {
	Participant core.Participant
}

type GetParticipantsRequest struct {
	ByzID     skipchain.SkipBlockID
	IID       byzcoin.InstanceID
	ProjectID uint64
	Offset    uint64
	Limit     uint64
}

type GetParticipantsReply struct {
	Participants []core.Participant
	Count        uint64
}

type GetLotteryResultRequest struct {
	ByzID     skipchain.SkipBlockID
	IID       byzcoin.InstanceID
	ProjectID uint64
}

type GetLotteryResultReply struct {
	Result core.LotteryResult
}

type GetEventsRequest struct {
	ByzID     skipchain.SkipBlockID
	IID       byzcoin.InstanceID
	ProjectID uint64
	// All returns the whole log instead of one project's slice.
	All bool
}

type GetEventsReply struct {
	Events []core.Event
}

type GetJournalRequest struct {
	IID byzcoin.InstanceID
}

type GetJournalReply struct {
	Events []core.Event
}
