package contracts

import (
	"encoding/binary"

	"github.com/dedis/fairticket/core"
	"github.com/dedis/fairticket/merkle"
	"github.com/ethereum/go-ethereum/common"
	"go.dedis.ch/cothority/v3/byzcoin"
	"go.dedis.ch/cothority/v3/darc"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/protobuf"
	"golang.org/x/xerrors"
)

const ContractFairTicketID = "fairTicket"

// Invoke commands of the fairTicket contract.
const (
	CmdCreateProject = "createproject"
	CmdStartProject  = "startproject"
	CmdFinishProject = "finishproject"
	CmdParticipate   = "participate"
	CmdLottery       = "lottery"
	CmdSetRoot       = "setroot"
	CmdTransferAdmin = "transferadmin"
	CmdClaim         = "claim"
)

// ContractFairTicket keeps the whole registry in one protobuf-encoded
// storage blob. Byzcoin serializes instruction execution, so the state
// machine needs no locking: an instruction either produces the Update state
// change or aborts with no effect.
type ContractFairTicket struct {
	byzcoin.BasicContract
	core.Registry
}

func ContractFairTicketFromBytes(in []byte) (byzcoin.Contract, error) {
	c := &ContractFairTicket{}
	err := protobuf.Decode(in, &c.Registry)
	if err != nil {
		log.Errorf("Protobuf decode failed: %v", err)
		return nil, err
	}
	return c, nil
}

// Spawn initializes the registry. Args: "admin" is the darc identity string
// of the administrator, "seed" the id the first project gets.
func (c *ContractFairTicket) Spawn(rst byzcoin.ReadOnlyStateTrie, inst byzcoin.Instruction, coins []byzcoin.Coin) (sc []byzcoin.StateChange, cout []byzcoin.Coin, err error) {
	cout = coins
	var darcID darc.ID
	_, _, _, darcID, err = rst.GetValues(inst.InstanceID.Slice())
	if err != nil {
		log.Errorf("GetValues failed: %v", err)
		return
	}
	adminBuf := inst.Spawn.Args.Search("admin")
	if adminBuf == nil {
		log.Errorf("Missing admin identity")
		return nil, nil, xerrors.New("missing admin identity")
	}
	seed, err := argUint64(inst.Spawn.Args, "seed")
	if err != nil {
		log.Errorf("Bad seed: %v", err)
		return
	}
	c.Registry = *core.NewRegistry(string(adminBuf), seed)
	buf, err := protobuf.Encode(&c.Registry)
	if err != nil {
		log.Errorf("Protobuf encode failed: %v", err)
		return
	}
	sc = []byzcoin.StateChange{
		byzcoin.NewStateChange(byzcoin.Create, inst.DeriveID(""), ContractFairTicketID, buf, darcID),
	}
	return
}

func (c *ContractFairTicket) Invoke(rst byzcoin.ReadOnlyStateTrie, inst byzcoin.Instruction, coins []byzcoin.Coin) (sc []byzcoin.StateChange, cout []byzcoin.Coin, err error) {
	cout = coins
	var darcID darc.ID
	_, _, _, darcID, err = rst.GetValues(inst.InstanceID.Slice())
	if err != nil {
		log.Errorf("Get values failed: %v", err)
		return
	}
	reg := &c.Registry
	switch inst.Invoke.Command {
	case CmdCreateProject:
		if err = c.authorizeAdmin(inst); err != nil {
			log.Errorf("Authorization failed: %v", err)
			return
		}
		var fp common.Hash
		fp, err = argHash(inst.Invoke.Args, "fingerprint")
		if err != nil {
			log.Errorf("Bad fingerprint: %v", err)
			return
		}
		var owner common.Address
		owner, err = argAddress(inst.Invoke.Args, "owner")
		if err != nil {
			log.Errorf("Bad owner: %v", err)
			return
		}
		var supply uint64
		supply, err = argUint64(inst.Invoke.Args, "totalsupply")
		if err != nil {
			log.Errorf("Bad totalsupply: %v", err)
			return
		}
		_, err = reg.CreateProject(fp, owner, supply)
	case CmdStartProject:
		if err = c.authorizeAdmin(inst); err != nil {
			log.Errorf("Authorization failed: %v", err)
			return
		}
		var id uint64
		id, err = argUint64(inst.Invoke.Args, "id")
		if err != nil {
			log.Errorf("Bad id: %v", err)
			return
		}
		err = reg.StartProject(id)
	case CmdFinishProject:
		if err = c.authorizeAdmin(inst); err != nil {
			log.Errorf("Authorization failed: %v", err)
			return
		}
		var id uint64
		id, err = argUint64(inst.Invoke.Args, "id")
		if err != nil {
			log.Errorf("Bad id: %v", err)
			return
		}
		err = reg.FinishProject(id)
	case CmdParticipate:
		var id, lucky uint64
		var addr common.Address
		id, err = argUint64(inst.Invoke.Args, "id")
		if err != nil {
			log.Errorf("Bad id: %v", err)
			return
		}
		addr, err = argAddress(inst.Invoke.Args, "addr")
		if err != nil {
			log.Errorf("Bad addr: %v", err)
			return
		}
		lucky, err = argUint64(inst.Invoke.Args, "luckynum")
		if err != nil {
			log.Errorf("Bad luckynum: %v", err)
			return
		}
		err = reg.Participate(id, addr, lucky)
	case CmdLottery:
		if err = c.authorizeAdmin(inst); err != nil {
			log.Errorf("Authorization failed: %v", err)
			return
		}
		var id, magic uint64
		id, err = argUint64(inst.Invoke.Args, "id")
		if err != nil {
			log.Errorf("Bad id: %v", err)
			return
		}
		magic, err = argUint64(inst.Invoke.Args, "magicnum")
		if err != nil {
			log.Errorf("Bad magicnum: %v", err)
			return
		}
		err = reg.PublishLottery(id, magic)
	case CmdSetRoot:
		if err = c.authorizeAdmin(inst); err != nil {
			log.Errorf("Authorization failed: %v", err)
			return
		}
		var id uint64
		id, err = argUint64(inst.Invoke.Args, "id")
		if err != nil {
			log.Errorf("Bad id: %v", err)
			return
		}
		var root common.Hash
		root, err = argHash(inst.Invoke.Args, "root")
		if err != nil {
			log.Errorf("Bad root: %v", err)
			return
		}
		err = reg.SetMerkleRoot(id, root)
	case CmdTransferAdmin:
		if err = c.authorizeAdmin(inst); err != nil {
			log.Errorf("Authorization failed: %v", err)
			return
		}
		adminBuf := inst.Invoke.Args.Search("admin")
		if adminBuf == nil {
			log.Errorf("Missing admin identity")
			return nil, nil, xerrors.New("missing admin identity")
		}
		reg.TransferAdmin(string(adminBuf))
	case CmdClaim:
		var id uint64
		var addr common.Address
		id, err = argUint64(inst.Invoke.Args, "id")
		if err != nil {
			log.Errorf("Bad id: %v", err)
			return
		}
		addr, err = argAddress(inst.Invoke.Args, "addr")
		if err != nil {
			log.Errorf("Bad addr: %v", err)
			return
		}
		proofBuf := inst.Invoke.Args.Search("proof")
		if proofBuf == nil {
			log.Errorf("Missing proof")
			return nil, nil, xerrors.New("missing proof")
		}
		proof := &merkle.Proof{}
		err = protobuf.Decode(proofBuf, proof)
		if err != nil {
			log.Errorf("Protobuf decode failed: %v", err)
			return
		}
		err = reg.VerifyMembership(id, addr, proof)
		if err == nil {
			reg.Events = append(reg.Events, core.Event{
				Name: core.EventClaimVerified, ProjectID: id,
				Digest: addr.Bytes()})
		}
	default:
		err = xerrors.Errorf("invalid invoke command: %s", inst.Invoke.Command)
	}
	if err != nil {
		log.Errorf("Command %s failed: %v", inst.Invoke.Command, err)
		return nil, nil, err
	}
	buf, err := protobuf.Encode(reg)
	if err != nil {
		log.Errorf("Protobuf encode failed: %v", err)
		return
	}
	sc = []byzcoin.StateChange{
		byzcoin.NewStateChange(byzcoin.Update, inst.InstanceID, ContractFairTicketID, buf, darcID),
	}
	return
}

func (c *ContractFairTicket) Delete(rst byzcoin.ReadOnlyStateTrie, inst byzcoin.Instruction, coins []byzcoin.Coin) (sc []byzcoin.StateChange, cout []byzcoin.Coin, err error) {
	cout = coins
	var darcID darc.ID
	_, _, _, darcID, err = rst.GetValues(inst.InstanceID.Slice())
	if err != nil {
		log.Errorf("Get values failed: %v", err)
		return
	}
	sc = byzcoin.StateChanges{byzcoin.NewStateChange(byzcoin.Remove, inst.InstanceID, ContractFairTicketID, nil, darcID)}
	return
}

// authorizeAdmin makes sure one of the instruction signers is the stored
// administrator identity.
func (c *ContractFairTicket) authorizeAdmin(inst byzcoin.Instruction) error {
	for _, sid := range inst.SignerIdentities {
		if sid.String() == c.Registry.Admin {
			return nil
		}
	}
	return xerrors.Errorf("instruction %x: %w", inst.Hash(), core.ErrNotAdmin)
}

func argUint64(args byzcoin.Arguments, name string) (uint64, error) {
	buf := args.Search(name)
	if len(buf) != 8 {
		return 0, xerrors.Errorf("argument %s must be 8 bytes, got %d", name, len(buf))
	}
	return binary.LittleEndian.Uint64(buf), nil
}

func argHash(args byzcoin.Arguments, name string) (common.Hash, error) {
	buf := args.Search(name)
	if len(buf) != common.HashLength {
		return common.Hash{}, xerrors.Errorf("argument %s must be %d bytes, got %d",
			name, common.HashLength, len(buf))
	}
	return common.BytesToHash(buf), nil
}

func argAddress(args byzcoin.Arguments, name string) (common.Address, error) {
	buf := args.Search(name)
	if len(buf) != common.AddressLength {
		return common.Address{}, xerrors.Errorf("argument %s must be %d bytes, got %d",
			name, common.AddressLength, len(buf))
	}
	return common.BytesToAddress(buf), nil
}

// Uint64Arg encodes a numeric instruction argument.
func Uint64Arg(v uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	return buf
}
