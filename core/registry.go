package core

import (
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/xerrors"
)

// NewRegistry creates an empty registry owned by the given administrator
// identity. The first project created gets the seed as its id.
func NewRegistry(admin string, seed uint64) *Registry {
	return &Registry{
		Admin:  admin,
		NextID: seed,
	}
}

func (r *Registry) project(id uint64) (*Project, error) {
	for i := range r.Projects {
		if r.Projects[i].ID == id {
			return &r.Projects[i], nil
		}
	}
	return nil, xerrors.Errorf("project %d: %w", id, ErrProjectNotFound)
}

// CreateProject allocates the next id and stores a new project in the
// NotStarted state with an unset merkle root. The fingerprint is stored
// verbatim, it is never validated.
func (r *Registry) CreateProject(fingerprint common.Hash, owner common.Address,
	totalSupply uint64) (uint64, error) {
	if totalSupply == 0 {
		return 0, xerrors.Errorf("creating project: %w", ErrTotalSupplyZero)
	}
	id := r.NextID
	r.NextID++
	r.Projects = append(r.Projects, Project{
		ID:          id,
		Fingerprint: fingerprint,
		Owner:       owner,
		TotalSupply: totalSupply,
		Status:      NotStarted,
	})
	r.appendEvent(Event{Name: EventProjectCreated, ProjectID: id,
		Digest: fingerprint.Bytes()})
	return id, nil
}

func (r *Registry) StartProject(id uint64) error {
	p, err := r.project(id)
	if err != nil {
		return err
	}
	// Fires for Finished too: the project is not eligible to start.
	if p.Status != NotStarted {
		return xerrors.Errorf("project %d is %s: %w", id, p.Status,
			ErrProjectAlreadyStarted)
	}
	p.Status = InProgress
	r.appendEvent(Event{Name: EventProjectStarted, ProjectID: id})
	return nil
}

func (r *Registry) FinishProject(id uint64) error {
	p, err := r.project(id)
	if err != nil {
		return err
	}
	if p.Status != InProgress {
		return xerrors.Errorf("project %d is %s: %w", id, p.Status,
			ErrProjectNotInProgress)
	}
	p.Status = Finished
	r.appendEvent(Event{Name: EventProjectFinished, ProjectID: id})
	return nil
}

// SetMerkleRoot stores the off-chain computed root, exactly once per project.
func (r *Registry) SetMerkleRoot(id uint64, root common.Hash) error {
	p, err := r.project(id)
	if err != nil {
		return err
	}
	if p.MerkleRoot != (common.Hash{}) {
		return xerrors.Errorf("project %d: %w", id, ErrMerkleRootAlreadySet)
	}
	p.MerkleRoot = root
	r.appendEvent(Event{Name: EventRootSet, ProjectID: id, Digest: root.Bytes()})
	return nil
}

// Participate appends to the registration log. A repeated address appends a
// new entry; the log keeps every call. The totalSupply cap is not enforced.
func (r *Registry) Participate(id uint64, addr common.Address, luckyNum uint64) error {
	p, err := r.project(id)
	if err != nil {
		return err
	}
	if p.Status != InProgress {
		return xerrors.Errorf("project %d is %s: %w", id, p.Status,
			ErrProjectNotInProgress)
	}
	p.Participants = append(p.Participants, Participant{
		Address:  addr,
		LuckyNum: luckyNum,
	})
	r.appendEvent(Event{Name: EventParticipated, ProjectID: id,
		Digest: addr.Bytes(), Value: luckyNum})
	return nil
}

// PublishLottery stores the magic number for a finished project. Calling it
// again overwrites the previous result, there is no once-only guard.
func (r *Registry) PublishLottery(id uint64, magic uint64) error {
	p, err := r.project(id)
	if err != nil {
		return err
	}
	if p.Status != Finished {
		return xerrors.Errorf("project %d is %s: %w", id, p.Status,
			ErrProjectNotFinished)
	}
	stored := false
	for i := range r.Results {
		if r.Results[i].ProjectID == id {
			r.Results[i].MagicNumber = magic
			stored = true
			break
		}
	}
	if !stored {
		r.Results = append(r.Results, LotteryResult{ProjectID: id, MagicNumber: magic})
	}
	r.appendEvent(Event{Name: EventLotteryDrawn, ProjectID: id, Value: magic})
	return nil
}

// TransferAdmin hands the registry over to a new administrator identity.
func (r *Registry) TransferAdmin(admin string) {
	r.Admin = admin
	r.appendEvent(Event{Name: EventAdminChanged})
}

// Project returns a copy of the stored record.
func (r *Registry) Project(id uint64) (Project, error) {
	p, err := r.project(id)
	if err != nil {
		return Project{}, err
	}
	return *p, nil
}

func (r *Registry) ProjectStatus(id uint64) (Status, error) {
	p, err := r.project(id)
	if err != nil {
		return NotStarted, err
	}
	return p.Status, nil
}

func (r *Registry) LotteryResult(id uint64) (LotteryResult, error) {
	if _, err := r.project(id); err != nil {
		return LotteryResult{}, err
	}
	for _, res := range r.Results {
		if res.ProjectID == id {
			return res, nil
		}
	}
	return LotteryResult{}, xerrors.Errorf("project %d: %w", id, ErrLotteryNotDrawn)
}

// Participant returns the most recent log entry for the address: the log is
// canonical and last write wins on duplicate registrations.
func (r *Registry) Participant(id uint64, addr common.Address) (Participant, error) {
	p, err := r.project(id)
	if err != nil {
		return Participant{}, err
	}
	for i := len(p.Participants) - 1; i >= 0; i-- {
		if p.Participants[i].Address == addr {
			return p.Participants[i], nil
		}
	}
	return Participant{}, xerrors.Errorf("project %d address %s: %w", id,
		addr.Hex(), ErrParticipantNotFound)
}

func (r *Registry) ParticipantCount(id uint64) (uint64, error) {
	p, err := r.project(id)
	if err != nil {
		return 0, err
	}
	return uint64(len(p.Participants)), nil
}

// Participants returns min(limit, count-offset) entries in registration
// order. The offset must be strictly below the count, which makes offset 0
// on an empty log an error as well.
func (r *Registry) Participants(id uint64, offset, limit uint64) ([]Participant, error) {
	p, err := r.project(id)
	if err != nil {
		return nil, err
	}
	count := uint64(len(p.Participants))
	if offset >= count {
		return nil, xerrors.Errorf("project %d offset %d count %d: %w", id,
			offset, count, ErrOffsetOutOfBounds)
	}
	end := offset + limit
	if end > count || end < offset {
		end = count
	}
	out := make([]Participant, end-offset)
	copy(out, p.Participants[offset:end])
	return out, nil
}

func (r *Registry) appendEvent(ev Event) {
	r.Events = append(r.Events, ev)
}

// ProjectEvents filters the event log for one project.
func (r *Registry) ProjectEvents(id uint64) []Event {
	var out []Event
	for _, ev := range r.Events {
		if ev.ProjectID == id {
			out = append(out, ev)
		}
	}
	return out
}
