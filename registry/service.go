package registry

import (
	"encoding/binary"

	"github.com/dedis/fairticket/contracts"
	"github.com/dedis/fairticket/core"
	"go.dedis.ch/cothority/v3/byzcoin"
	"go.dedis.ch/cothority/v3/skipchain"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/onet/v3/network"
	"go.dedis.ch/protobuf"
	bbolt "go.etcd.io/bbolt"
	"golang.org/x/xerrors"
)

var registryID onet.ServiceID

const ServiceName = "FairTicketService"

func init() {
	var err error
	registryID, err = onet.RegisterNewService(ServiceName, newService)
	log.ErrFatal(err)
	network.RegisterMessages(&GetProjectRequest{}, &GetProjectReply{},
		&GetParticipantRequest{}, &GetParticipantReply{},
		&GetParticipantsRequest{}, &GetParticipantsReply{},
		&GetLotteryResultRequest{}, &GetLotteryResultReply{},
		&GetEventsRequest{}, &GetEventsReply{},
		&GetJournalRequest{}, &GetJournalReply{})
	err = byzcoin.RegisterGlobalContract(contracts.ContractFairTicketID,
		contracts.ContractFairTicketFromBytes)
	if err != nil {
		log.ErrFatal(err)
	}
}

// Service serves the read-only entry points for callers without a byzcoin
// client and keeps a bbolt journal of delivered events. All writes go
// through the contract; the service never mutates ledger state.
type Service struct {
	*onet.ServiceProcessor
	byzService *byzcoin.Service

	db     *bbolt.DB
	bucket []byte
}

// GetProject looks up a project record from the latest ledger state.
func (s *Service) GetProject(req *GetProjectRequest) (*GetProjectReply, error) {
	reg, err := s.registry(req.ByzID, req.IID)
	if err != nil {
		return nil, err
	}
	p, err := reg.Project(req.ProjectID)
	if err != nil {
		log.Errorf("Project lookup failed: %v", err)
		return nil, err
	}
	return &GetProjectReply{Project: p}, nil
}

// GetParticipant returns the most recent registration of the address.
func (s *Service) GetParticipant(req *GetParticipantRequest) (*GetParticipantReply, error) {
	reg, err := s.registry(req.ByzID, req.IID)
	if err != nil {
		return nil, err
	}
	part, err := reg.Participant(req.ProjectID, req.Address)
	if err != nil {
		log.Errorf("Participant lookup failed: %v", err)
		return nil, err
	}
	return &GetParticipantReply{Participant: part}, nil
}

// GetParticipants pages through the registration log in insertion order.
func (s *Service) GetParticipants(req *GetParticipantsRequest) (*GetParticipantsReply, error) {
	reg, err := s.registry(req.ByzID, req.IID)
	if err != nil {
		return nil, err
	}
	parts, err := reg.Participants(req.ProjectID, req.Offset, req.Limit)
	if err != nil {
		log.Errorf("Participant page failed: %v", err)
		return nil, err
	}
	count, err := reg.ParticipantCount(req.ProjectID)
	if err != nil {
		return nil, err
	}
	return &GetParticipantsReply{Participants: parts, Count: count}, nil
}

func (s *Service) GetLotteryResult(req *GetLotteryResultRequest) (*GetLotteryResultReply, error) {
	reg, err := s.registry(req.ByzID, req.IID)
	if err != nil {
		return nil, err
	}
	res, err := reg.LotteryResult(req.ProjectID)
	if err != nil {
		log.Errorf("Lottery result lookup failed: %v", err)
		return nil, err
	}
	return &GetLotteryResultReply{Result: res}, nil
}

// GetEvents returns the event log from the ledger and journals the delivered
// entries so they can be replayed without a ledger round-trip.
func (s *Service) GetEvents(req *GetEventsRequest) (*GetEventsReply, error) {
	reg, err := s.registry(req.ByzID, req.IID)
	if err != nil {
		return nil, err
	}
	var evs []core.Event
	if req.All {
		evs = reg.Events
	} else {
		if _, err := reg.Project(req.ProjectID); err != nil {
			log.Errorf("Project lookup failed: %v", err)
			return nil, err
		}
		evs = reg.ProjectEvents(req.ProjectID)
	}
	err = s.journalEvents(req.IID, reg.Events)
	if err != nil {
		log.Errorf("Journal write failed: %v", err)
		return nil, err
	}
	return &GetEventsReply{Events: evs}, nil
}

// GetJournal replays the journaled event log for an instance.
func (s *Service) GetJournal(req *GetJournalRequest) (*GetJournalReply, error) {
	reply := &GetJournalReply{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		c := b.Cursor()
		prefix := req.IID.Slice()
		for k, v := c.Seek(prefix); k != nil && len(k) >= len(prefix) &&
			string(k[:len(prefix)]) == string(prefix); k, v = c.Next() {
			ev := core.Event{}
			if err := protobuf.Decode(v, &ev); err != nil {
				return err
			}
			reply.Events = append(reply.Events, ev)
		}
		return nil
	})
	if err != nil {
		log.Errorf("Journal read failed: %v", err)
		return nil, err
	}
	return reply, nil
}

// registry fetches the instance value from the colocated byzcoin service and
// decodes the contract storage.
func (s *Service) registry(byzID skipchain.SkipBlockID, iid byzcoin.InstanceID) (*core.Registry, error) {
	gpr, err := s.byzService.GetProof(&byzcoin.GetProof{
		Version: byzcoin.CurrentVersion,
		ID:      byzID,
		Key:     iid.Slice(),
	})
	if err != nil {
		log.Errorf("GetProof failed: %v", err)
		return nil, err
	}
	v, cid, _, err := gpr.Proof.Get(iid.Slice())
	if err != nil {
		log.Errorf("Proof lookup failed: %v", err)
		return nil, err
	}
	if cid != contracts.ContractFairTicketID {
		return nil, xerrors.Errorf("instance holds a %s contract, not %s",
			cid, contracts.ContractFairTicketID)
	}
	reg := &core.Registry{}
	err = protobuf.Decode(v, reg)
	if err != nil {
		log.Errorf("Protobuf decode failed: %v", err)
		return nil, err
	}
	return reg, nil
}

// journalEvents stores the full log under iid||index keys. Indexes are
// stable because the contract log is append-only.
func (s *Service) journalEvents(iid byzcoin.InstanceID, evs []core.Event) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		for i, ev := range evs {
			key := make([]byte, 0, len(iid.Slice())+8)
			key = append(key, iid.Slice()...)
			idx := make([]byte, 8)
			binary.BigEndian.PutUint64(idx, uint64(i))
			key = append(key, idx...)
			buf, err := protobuf.Encode(&ev)
			if err != nil {
				return err
			}
			if err := b.Put(key, buf); err != nil {
				return err
			}
		}
		return nil
	})
}

func newService(c *onet.Context) (onet.Service, error) {
	db, bucket := c.GetAdditionalBucket([]byte("fairticket-events"))
	s := &Service{
		ServiceProcessor: onet.NewServiceProcessor(c),
		byzService:       c.Service(byzcoin.ServiceName).(*byzcoin.Service),
		db:               db,
		bucket:           bucket,
	}
	err := s.RegisterHandlers(s.GetProject, s.GetParticipant,
		s.GetParticipants, s.GetLotteryResult, s.GetEvents, s.GetJournal)
	if err != nil {
		return nil, xerrors.Errorf("could not register handlers: %v", err)
	}
	return s, nil
}
