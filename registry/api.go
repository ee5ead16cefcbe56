package registry

import (
	"time"

	"github.com/dedis/fairticket/contracts"
	"github.com/dedis/fairticket/core"
	"github.com/dedis/fairticket/merkle"
	"github.com/dedis/fairticket/random"
	"github.com/ethereum/go-ethereum/common"
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/cothority/v3/byzcoin"
	"go.dedis.ch/cothority/v3/darc"
	"go.dedis.ch/cothority/v3/skipchain"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/protobuf"
	"golang.org/x/xerrors"
)

// Client reads registry state from the ledger and talks to the FairTicket
// service for the journal entry points.
type Client struct {
	bcClient *byzcoin.Client
	cl       *onet.Client
	interval time.Duration
}

// AdminClient drives the mutating side of the lifecycle. It holds the
// administrator signer and the injectable magic-number source.
type AdminClient struct {
	Cl     *Client
	signer darc.Signer
	ctr    uint64
	gMsg   *byzcoin.CreateGenesisBlock
	src    random.Source
}

type SpawnRegistryReply struct {
	IID    byzcoin.InstanceID
	TxResp *byzcoin.AddTxResponse
}

func NewClient(byzCl *byzcoin.Client, interval time.Duration) *Client {
	return &Client{
		bcClient: byzCl,
		cl:       onet.NewClient(cothority.Suite, ServiceName),
		interval: interval,
	}
}

func NewAdminClient(byzCl *byzcoin.Client, signer darc.Signer, ctr uint64,
	gMsg *byzcoin.CreateGenesisBlock, src random.Source) *AdminClient {
	return &AdminClient{
		Cl:     NewClient(byzCl, gMsg.BlockInterval),
		signer: signer,
		ctr:    ctr,
		gMsg:   gMsg,
		src:    src,
	}
}

// ResumeAdminClient rebuilds an admin client for an existing ledger, e.g.
// from a cli config. The counter must be the signer's next free counter.
func ResumeAdminClient(byzCl *byzcoin.Client, signer darc.Signer, ctr uint64,
	interval time.Duration, src random.Source) *AdminClient {
	return &AdminClient{
		Cl:     NewClient(byzCl, interval),
		signer: signer,
		ctr:    ctr,
		src:    src,
	}
}

// SetupByzcoin creates a new ledger whose genesis darc lets the admin signer
// spawn the contract and invoke every command.
func SetupByzcoin(r *onet.Roster, blockTime time.Duration,
	src random.Source) (*AdminClient, skipchain.SkipBlockID, error) {
	signer := darc.NewSignerEd25519(nil, nil)
	rules := []string{"spawn:" + contracts.ContractFairTicketID}
	for _, cmd := range []string{contracts.CmdCreateProject,
		contracts.CmdStartProject, contracts.CmdFinishProject,
		contracts.CmdParticipate, contracts.CmdLottery, contracts.CmdSetRoot,
		contracts.CmdTransferAdmin, contracts.CmdClaim} {
		rules = append(rules, "invoke:"+contracts.ContractFairTicketID+"."+cmd)
	}
	gMsg, err := byzcoin.DefaultGenesisMsg(byzcoin.CurrentVersion, r, rules,
		signer.Identity())
	if err != nil {
		return nil, nil, err
	}
	gMsg.BlockInterval = blockTime
	c, _, err := byzcoin.NewLedger(gMsg, false)
	if err != nil {
		return nil, nil, err
	}
	log.Lvl2("Created the ledger:", c.ID)
	cl := NewAdminClient(c, signer, uint64(1), gMsg, src)
	return cl, c.ID, nil
}

// SpawnRegistry creates the contract instance. The admin identity stored in
// the contract is the signer of this spawn.
func (c *AdminClient) SpawnRegistry(seed uint64, wait int) (*SpawnRegistryReply, error) {
	ctx, err := c.Cl.bcClient.CreateTransaction(byzcoin.Instruction{
		InstanceID: byzcoin.NewInstanceID(c.gMsg.GenesisDarc.GetBaseID()),
		Spawn: &byzcoin.Spawn{
			ContractID: contracts.ContractFairTicketID,
			Args: byzcoin.Arguments{
				{Name: "admin", Value: []byte(c.signer.Identity().String())},
				{Name: "seed", Value: contracts.Uint64Arg(seed)},
			},
		},
		SignerCounter: []uint64{c.ctr},
	})
	if err != nil {
		return nil, xerrors.Errorf("creating txn: %v", err)
	}
	err = ctx.FillSignersAndSignWith(c.signer)
	if err != nil {
		return nil, xerrors.Errorf("signing txn: %v", err)
	}
	reply := &SpawnRegistryReply{IID: ctx.Instructions[0].DeriveID("")}
	reply.TxResp, err = c.Cl.bcClient.AddTransactionAndWait(ctx, wait)
	if err != nil {
		return nil, xerrors.Errorf("adding txn: %v", err)
	}
	c.ctr++
	return reply, nil
}

// CreateProject registers a project and returns the id the contract
// assigned to it.
func (c *AdminClient) CreateProject(iid byzcoin.InstanceID, fingerprint common.Hash,
	owner common.Address, totalSupply uint64, wait int) (uint64, error) {
	_, err := c.invoke(iid, contracts.CmdCreateProject, byzcoin.Arguments{
		{Name: "fingerprint", Value: fingerprint.Bytes()},
		{Name: "owner", Value: owner.Bytes()},
		{Name: "totalsupply", Value: contracts.Uint64Arg(totalSupply)},
	}, wait)
	if err != nil {
		return 0, err
	}
	reg, err := c.Cl.GetRegistry(iid)
	if err != nil {
		return 0, err
	}
	if len(reg.Projects) == 0 {
		return 0, xerrors.New("no project in registry after create")
	}
	return reg.Projects[len(reg.Projects)-1].ID, nil
}

func (c *AdminClient) StartProject(iid byzcoin.InstanceID, id uint64, wait int) error {
	_, err := c.invoke(iid, contracts.CmdStartProject, byzcoin.Arguments{
		{Name: "id", Value: contracts.Uint64Arg(id)},
	}, wait)
	return err
}

func (c *AdminClient) FinishProject(iid byzcoin.InstanceID, id uint64, wait int) error {
	_, err := c.invoke(iid, contracts.CmdFinishProject, byzcoin.Arguments{
		{Name: "id", Value: contracts.Uint64Arg(id)},
	}, wait)
	return err
}

// DrawLottery asks the magic-number source for a value and publishes it.
// The value travels in the instruction so that replay is deterministic.
func (c *AdminClient) DrawLottery(iid byzcoin.InstanceID, id uint64, wait int) (uint64, error) {
	magic := c.src.Next()
	_, err := c.invoke(iid, contracts.CmdLottery, byzcoin.Arguments{
		{Name: "id", Value: contracts.Uint64Arg(id)},
		{Name: "magicnum", Value: contracts.Uint64Arg(magic)},
	}, wait)
	if err != nil {
		return 0, err
	}
	return magic, nil
}

func (c *AdminClient) SetMerkleRoot(iid byzcoin.InstanceID, id uint64,
	root common.Hash, wait int) error {
	_, err := c.invoke(iid, contracts.CmdSetRoot, byzcoin.Arguments{
		{Name: "id", Value: contracts.Uint64Arg(id)},
		{Name: "root", Value: root.Bytes()},
	}, wait)
	return err
}

func (c *AdminClient) TransferAdmin(iid byzcoin.InstanceID, admin string, wait int) error {
	_, err := c.invoke(iid, contracts.CmdTransferAdmin, byzcoin.Arguments{
		{Name: "admin", Value: []byte(admin)},
	}, wait)
	return err
}

// Participate registers the address with the admin signer. Standalone
// participants go through Client.Invoke with their own signer and counter.
func (c *AdminClient) Participate(iid byzcoin.InstanceID, id uint64,
	addr common.Address, luckyNum uint64, wait int) error {
	err := c.Cl.Participate(iid, id, addr, luckyNum, c.signer, c.ctr, wait)
	if err != nil {
		return err
	}
	c.ctr++
	return nil
}

// Claim submits a membership proof signed by the admin.
func (c *AdminClient) Claim(iid byzcoin.InstanceID, id uint64,
	addr common.Address, proof *merkle.Proof, wait int) error {
	err := c.Cl.Claim(iid, id, addr, proof, c.signer, c.ctr, wait)
	if err != nil {
		return err
	}
	c.ctr++
	return nil
}

// Signer exposes the admin signer, e.g. to persist it in a config file.
func (c *AdminClient) Signer() darc.Signer {
	return c.signer
}

func (c *AdminClient) invoke(iid byzcoin.InstanceID, cmd string,
	args byzcoin.Arguments, wait int) (*byzcoin.AddTxResponse, error) {
	resp, err := c.Cl.Invoke(iid, cmd, args, c.signer, c.ctr, wait)
	if err != nil {
		return nil, err
	}
	c.ctr++
	return resp, nil
}

// Invoke submits a single command signed by the given signer. Participants
// use it through Participate and Claim with their own counters.
func (c *Client) Invoke(iid byzcoin.InstanceID, cmd string, args byzcoin.Arguments,
	signer darc.Signer, ctr uint64, wait int) (*byzcoin.AddTxResponse, error) {
	ctx, err := c.bcClient.CreateTransaction(byzcoin.Instruction{
		InstanceID: iid,
		Invoke: &byzcoin.Invoke{
			ContractID: contracts.ContractFairTicketID,
			Command:    cmd,
			Args:       args,
		},
		SignerCounter: []uint64{ctr},
	})
	if err != nil {
		return nil, xerrors.Errorf("creating txn: %v", err)
	}
	err = ctx.FillSignersAndSignWith(signer)
	if err != nil {
		return nil, xerrors.Errorf("signing txn: %v", err)
	}
	resp, err := c.bcClient.AddTransactionAndWait(ctx, wait)
	if err != nil {
		return nil, xerrors.Errorf("adding txn: %v", err)
	}
	return resp, nil
}

// Participate appends a registration for the address. The address is the
// identity of record; the signer only needs invoke rights on the darc.
func (c *Client) Participate(iid byzcoin.InstanceID, id uint64, addr common.Address,
	luckyNum uint64, signer darc.Signer, ctr uint64, wait int) error {
	_, err := c.Invoke(iid, contracts.CmdParticipate, byzcoin.Arguments{
		{Name: "id", Value: contracts.Uint64Arg(id)},
		{Name: "addr", Value: addr.Bytes()},
		{Name: "luckynum", Value: contracts.Uint64Arg(luckyNum)},
	}, signer, ctr, wait)
	return err
}

// Claim proves on-ledger that the address is part of the committed winner
// set. A bad proof aborts the instruction, nothing is recorded.
func (c *Client) Claim(iid byzcoin.InstanceID, id uint64, addr common.Address,
	proof *merkle.Proof, signer darc.Signer, ctr uint64, wait int) error {
	proofBuf, err := protobuf.Encode(proof)
	if err != nil {
		return xerrors.Errorf("encoding proof: %v", err)
	}
	_, err = c.Invoke(iid, contracts.CmdClaim, byzcoin.Arguments{
		{Name: "id", Value: contracts.Uint64Arg(id)},
		{Name: "addr", Value: addr.Bytes()},
		{Name: "proof", Value: proofBuf},
	}, signer, ctr, wait)
	return err
}

// GetRegistry fetches and decodes the full contract storage.
func (c *Client) GetRegistry(iid byzcoin.InstanceID) (*core.Registry, error) {
	pr, err := c.bcClient.WaitProof(iid, c.interval, nil)
	if err != nil {
		return nil, xerrors.Errorf("waiting for proof: %v", err)
	}
	v, _, _, err := pr.Get(iid.Slice())
	if err != nil {
		return nil, xerrors.Errorf("getting value: %v", err)
	}
	reg := &core.Registry{}
	err = protobuf.Decode(v, reg)
	if err != nil {
		return nil, xerrors.Errorf("decoding registry: %v", err)
	}
	return reg, nil
}

func (c *Client) GetProject(iid byzcoin.InstanceID, id uint64) (core.Project, error) {
	reg, err := c.GetRegistry(iid)
	if err != nil {
		return core.Project{}, err
	}
	return reg.Project(id)
}

func (c *Client) GetStatus(iid byzcoin.InstanceID, id uint64) (core.Status, error) {
	reg, err := c.GetRegistry(iid)
	if err != nil {
		return core.NotStarted, err
	}
	return reg.ProjectStatus(id)
}

func (c *Client) GetLotteryResult(iid byzcoin.InstanceID, id uint64) (core.LotteryResult, error) {
	reg, err := c.GetRegistry(iid)
	if err != nil {
		return core.LotteryResult{}, err
	}
	return reg.LotteryResult(id)
}

func (c *Client) GetParticipant(iid byzcoin.InstanceID, id uint64,
	addr common.Address) (core.Participant, error) {
	reg, err := c.GetRegistry(iid)
	if err != nil {
		return core.Participant{}, err
	}
	return reg.Participant(id, addr)
}

func (c *Client) GetParticipants(iid byzcoin.InstanceID, id, offset,
	limit uint64) ([]core.Participant, error) {
	reg, err := c.GetRegistry(iid)
	if err != nil {
		return nil, err
	}
	return reg.Participants(id, offset, limit)
}

func (c *Client) GetParticipantCount(iid byzcoin.InstanceID, id uint64) (uint64, error) {
	reg, err := c.GetRegistry(iid)
	if err != nil {
		return 0, err
	}
	return reg.ParticipantCount(id)
}

// VerifyClaim runs the membership check client-side against the stored root.
func (c *Client) VerifyClaim(iid byzcoin.InstanceID, id uint64,
	addr common.Address, proof *merkle.Proof) error {
	reg, err := c.GetRegistry(iid)
	if err != nil {
		return err
	}
	return reg.VerifyMembership(id, addr, proof)
}

// FetchProject asks the FairTicket service instead of the ledger.
func (c *Client) FetchProject(byzID skipchain.SkipBlockID, iid byzcoin.InstanceID,
	id uint64) (*GetProjectReply, error) {
	if len(c.bcClient.Roster.List) == 0 {
		return nil, xerrors.New("got an empty roster list")
	}
	reply := &GetProjectReply{}
	err := c.cl.SendProtobuf(c.bcClient.Roster.List[0], &GetProjectRequest{
		ByzID: byzID, IID: iid, ProjectID: id}, reply)
	return reply, err
}

func (c *Client) FetchParticipants(byzID skipchain.SkipBlockID,
	iid byzcoin.InstanceID, id, offset, limit uint64) (*GetParticipantsReply, error) {
	if len(c.bcClient.Roster.List) == 0 {
		return nil, xerrors.New("got an empty roster list")
	}
	reply := &GetParticipantsReply{}
	err := c.cl.SendProtobuf(c.bcClient.Roster.List[0], &GetParticipantsRequest{
		ByzID: byzID, IID: iid, ProjectID: id, Offset: offset, Limit: limit}, reply)
	return reply, err
}

func (c *Client) FetchEvents(byzID skipchain.SkipBlockID, iid byzcoin.InstanceID,
	id uint64, all bool) (*GetEventsReply, error) {
	if len(c.bcClient.Roster.List) == 0 {
		return nil, xerrors.New("got an empty roster list")
	}
	reply := &GetEventsReply{}
	err := c.cl.SendProtobuf(c.bcClient.Roster.List[0], &GetEventsRequest{
		ByzID: byzID, IID: iid, ProjectID: id, All: all}, reply)
	return reply, err
}

func (c *Client) FetchJournal(iid byzcoin.InstanceID) (*GetJournalReply, error) {
	if len(c.bcClient.Roster.List) == 0 {
		return nil, xerrors.New("got an empty roster list")
	}
	reply := &GetJournalReply{}
	err := c.cl.SendProtobuf(c.bcClient.Roster.List[0], &GetJournalRequest{IID: iid}, reply)
	return reply, err
}
