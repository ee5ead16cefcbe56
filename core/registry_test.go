package core

import (
	"testing"

	"github.com/dedis/fairticket/merkle"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func newTestRegistry() *Registry {
	return NewRegistry("ed25519:admin", 1)
}

func addr(b byte) common.Address {
	return common.BytesToAddress([]byte{b})
}

func fingerprint(b byte) common.Hash {
	return common.BytesToHash([]byte{b})
}

func TestRegistry_CreateProject(t *testing.T) {
	reg := newTestRegistry()

	id, err := reg.CreateProject(fingerprint(0xaa), addr(1), 100)
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)

	id, err = reg.CreateProject(fingerprint(0xbb), addr(2), 50)
	require.NoError(t, err)
	require.Equal(t, uint64(2), id)

	p, err := reg.Project(1)
	require.NoError(t, err)
	require.Equal(t, fingerprint(0xaa), p.Fingerprint)
	require.Equal(t, addr(1), p.Owner)
	require.Equal(t, uint64(100), p.TotalSupply)
	require.Equal(t, NotStarted, p.Status)
	require.Equal(t, common.Hash{}, p.MerkleRoot)

	_, err = reg.CreateProject(fingerprint(0xcc), addr(3), 0)
	require.True(t, xerrors.Is(err, ErrTotalSupplyZero))
	// The failed create must not burn an id.
	id, err = reg.CreateProject(fingerprint(0xcc), addr(3), 10)
	require.NoError(t, err)
	require.Equal(t, uint64(3), id)
}

func TestRegistry_SeededIDs(t *testing.T) {
	reg := NewRegistry("ed25519:admin", 42)
	for i := uint64(0); i < 5; i++ {
		id, err := reg.CreateProject(fingerprint(byte(i)), addr(1), 10)
		require.NoError(t, err)
		require.Equal(t, 42+i, id)
	}
}

func TestRegistry_Lifecycle(t *testing.T) {
	reg := newTestRegistry()
	id, err := reg.CreateProject(fingerprint(1), addr(1), 10)
	require.NoError(t, err)

	require.NoError(t, reg.StartProject(id))
	st, err := reg.ProjectStatus(id)
	require.NoError(t, err)
	require.Equal(t, InProgress, st)

	// Starting again or starting a finished project both fail.
	err = reg.StartProject(id)
	require.True(t, xerrors.Is(err, ErrProjectAlreadyStarted))

	require.NoError(t, reg.FinishProject(id))
	st, err = reg.ProjectStatus(id)
	require.NoError(t, err)
	require.Equal(t, Finished, st)

	err = reg.StartProject(id)
	require.True(t, xerrors.Is(err, ErrProjectAlreadyStarted))
	err = reg.FinishProject(id)
	require.True(t, xerrors.Is(err, ErrProjectNotInProgress))
}

func TestRegistry_LifecycleUnknownProject(t *testing.T) {
	reg := newTestRegistry()
	require.True(t, xerrors.Is(reg.StartProject(7), ErrProjectNotFound))
	require.True(t, xerrors.Is(reg.FinishProject(7), ErrProjectNotFound))
	require.True(t, xerrors.Is(reg.Participate(7, addr(1), 1), ErrProjectNotFound))
	require.True(t, xerrors.Is(reg.PublishLottery(7, 1), ErrProjectNotFound))
	require.True(t, xerrors.Is(reg.SetMerkleRoot(7, fingerprint(1)), ErrProjectNotFound))
	_, err := reg.Project(7)
	require.True(t, xerrors.Is(err, ErrProjectNotFound))
}

func TestRegistry_Participate(t *testing.T) {
	reg := newTestRegistry()
	id, err := reg.CreateProject(fingerprint(1), addr(1), 4)
	require.NoError(t, err)

	// Only an in-progress project takes registrations.
	err = reg.Participate(id, addr(10), 11)
	require.True(t, xerrors.Is(err, ErrProjectNotInProgress))

	require.NoError(t, reg.StartProject(id))
	require.NoError(t, reg.Participate(id, addr(10), 11))
	require.NoError(t, reg.Participate(id, addr(20), 22))
	require.NoError(t, reg.Participate(id, addr(30), 33))
	require.NoError(t, reg.Participate(id, addr(40), 44))

	count, err := reg.ParticipantCount(id)
	require.NoError(t, err)
	require.Equal(t, uint64(4), count)

	part, err := reg.Participant(id, addr(30))
	require.NoError(t, err)
	require.Equal(t, uint64(33), part.LuckyNum)

	_, err = reg.Participant(id, addr(99))
	require.True(t, xerrors.Is(err, ErrParticipantNotFound))

	require.NoError(t, reg.FinishProject(id))
	err = reg.Participate(id, addr(50), 55)
	require.True(t, xerrors.Is(err, ErrProjectNotInProgress))
}

func TestRegistry_ParticipateDuplicates(t *testing.T) {
	reg := newTestRegistry()
	id, err := reg.CreateProject(fingerprint(1), addr(1), 10)
	require.NoError(t, err)
	require.NoError(t, reg.StartProject(id))

	require.NoError(t, reg.Participate(id, addr(10), 11))
	require.NoError(t, reg.Participate(id, addr(10), 99))

	// The log keeps both entries, the lookup returns the latest one.
	count, err := reg.ParticipantCount(id)
	require.NoError(t, err)
	require.Equal(t, uint64(2), count)

	part, err := reg.Participant(id, addr(10))
	require.NoError(t, err)
	require.Equal(t, uint64(99), part.LuckyNum)
}

func TestRegistry_Oversubscription(t *testing.T) {
	reg := newTestRegistry()
	id, err := reg.CreateProject(fingerprint(1), addr(1), 2)
	require.NoError(t, err)
	require.NoError(t, reg.StartProject(id))

	// The supply is informational, registrations beyond it are accepted.
	for i := byte(0); i < 5; i++ {
		require.NoError(t, reg.Participate(id, addr(10+i), uint64(i)))
	}
	count, err := reg.ParticipantCount(id)
	require.NoError(t, err)
	require.Equal(t, uint64(5), count)
}

func TestRegistry_ParticipantsPaging(t *testing.T) {
	reg := newTestRegistry()
	id, err := reg.CreateProject(fingerprint(1), addr(1), 10)
	require.NoError(t, err)
	require.NoError(t, reg.StartProject(id))
	for i := byte(0); i < 7; i++ {
		require.NoError(t, reg.Participate(id, addr(10+i), uint64(i)*10))
	}

	parts, err := reg.Participants(id, 0, 3)
	require.NoError(t, err)
	require.Len(t, parts, 3)
	require.Equal(t, addr(10), parts[0].Address)
	require.Equal(t, addr(12), parts[2].Address)

	// A page over the tail is clamped to what is left.
	parts, err = reg.Participants(id, 5, 10)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	require.Equal(t, addr(15), parts[0].Address)
	require.Equal(t, addr(16), parts[1].Address)

	parts, err = reg.Participants(id, 6, 1)
	require.NoError(t, err)
	require.Len(t, parts, 1)

	_, err = reg.Participants(id, 7, 1)
	require.True(t, xerrors.Is(err, ErrOffsetOutOfBounds))
	_, err = reg.Participants(id, 100, 1)
	require.True(t, xerrors.Is(err, ErrOffsetOutOfBounds))

	// A huge limit must not overflow the end index.
	parts, err = reg.Participants(id, 3, ^uint64(0))
	require.NoError(t, err)
	require.Len(t, parts, 4)
}

func TestRegistry_ParticipantsEmptyLog(t *testing.T) {
	reg := newTestRegistry()
	id, err := reg.CreateProject(fingerprint(1), addr(1), 10)
	require.NoError(t, err)

	// Offset 0 on an empty log is already out of bounds.
	_, err = reg.Participants(id, 0, 10)
	require.True(t, xerrors.Is(err, ErrOffsetOutOfBounds))
}

func TestRegistry_PublishLottery(t *testing.T) {
	reg := newTestRegistry()
	id, err := reg.CreateProject(fingerprint(1), addr(1), 10)
	require.NoError(t, err)

	err = reg.PublishLottery(id, 7)
	require.True(t, xerrors.Is(err, ErrProjectNotFinished))
	_, err = reg.LotteryResult(id)
	require.True(t, xerrors.Is(err, ErrLotteryNotDrawn))

	require.NoError(t, reg.StartProject(id))
	err = reg.PublishLottery(id, 7)
	require.True(t, xerrors.Is(err, ErrProjectNotFinished))

	require.NoError(t, reg.FinishProject(id))
	require.NoError(t, reg.PublishLottery(id, 7))
	res, err := reg.LotteryResult(id)
	require.NoError(t, err)
	require.Equal(t, uint64(7), res.MagicNumber)

	// A second drawing replaces the first, without duplicating the record.
	require.NoError(t, reg.PublishLottery(id, 9))
	res, err = reg.LotteryResult(id)
	require.NoError(t, err)
	require.Equal(t, uint64(9), res.MagicNumber)
	require.Len(t, reg.Results, 1)
}

func TestRegistry_SetMerkleRoot(t *testing.T) {
	reg := newTestRegistry()
	id, err := reg.CreateProject(fingerprint(1), addr(1), 10)
	require.NoError(t, err)

	root := common.BytesToHash([]byte("winner-set-root"))
	require.NoError(t, reg.SetMerkleRoot(id, root))
	p, err := reg.Project(id)
	require.NoError(t, err)
	require.Equal(t, root, p.MerkleRoot)

	err = reg.SetMerkleRoot(id, common.BytesToHash([]byte("other")))
	require.True(t, xerrors.Is(err, ErrMerkleRootAlreadySet))
	p, err = reg.Project(id)
	require.NoError(t, err)
	require.Equal(t, root, p.MerkleRoot)
}

func TestRegistry_VerifyMembership(t *testing.T) {
	reg := newTestRegistry()
	id, err := reg.CreateProject(fingerprint(1), addr(1), 10)
	require.NoError(t, err)

	winners := []common.Address{addr(10), addr(20), addr(30), addr(40), addr(50)}
	tree, err := merkle.NewTreeAddresses(winners)
	require.NoError(t, err)

	proof, err := tree.Proof(2)
	require.NoError(t, err)

	// Before the root is committed every claim fails.
	err = reg.VerifyMembership(id, winners[2], proof)
	require.True(t, xerrors.Is(err, ErrMerkleRootNotSet))

	require.NoError(t, reg.SetMerkleRoot(id, common.BytesToHash(tree.Root())))
	require.NoError(t, reg.VerifyMembership(id, winners[2], proof))

	// The right proof for the wrong address fails.
	err = reg.VerifyMembership(id, addr(99), proof)
	require.True(t, xerrors.Is(err, ErrMerkleProofInvalid))

	err = reg.VerifyMembership(id, winners[2], &merkle.Proof{})
	require.True(t, xerrors.Is(err, ErrMerkleProofInvalid))
}

func TestRegistry_FullScenario(t *testing.T) {
	reg := newTestRegistry()
	id, err := reg.CreateProject(fingerprint(0xf0), addr(1), 4)
	require.NoError(t, err)
	require.NoError(t, reg.StartProject(id))

	luckyNums := []uint64{11, 22, 33, 44}
	for i, n := range luckyNums {
		require.NoError(t, reg.Participate(id, addr(byte(10+i)), n))
	}
	require.NoError(t, reg.FinishProject(id))
	require.NoError(t, reg.PublishLottery(id, 33))

	res, err := reg.LotteryResult(id)
	require.NoError(t, err)

	// Off-chain winner selection: closest lucky number takes the ticket.
	var winners []common.Address
	for i, n := range luckyNums {
		if n == res.MagicNumber {
			winners = append(winners, addr(byte(10+i)))
		}
	}
	require.Len(t, winners, 1)

	tree, err := merkle.NewTreeAddresses(winners)
	require.NoError(t, err)
	require.NoError(t, reg.SetMerkleRoot(id, common.BytesToHash(tree.Root())))

	proof, err := tree.Proof(0)
	require.NoError(t, err)
	require.NoError(t, reg.VerifyMembership(id, winners[0], proof))
	err = reg.VerifyMembership(id, addr(10), proof)
	require.True(t, xerrors.Is(err, ErrMerkleProofInvalid))
}

func TestRegistry_TransferAdmin(t *testing.T) {
	reg := newTestRegistry()
	reg.TransferAdmin("ed25519:other")
	require.Equal(t, "ed25519:other", reg.Admin)
}

func TestRegistry_Events(t *testing.T) {
	reg := newTestRegistry()
	id1, err := reg.CreateProject(fingerprint(1), addr(1), 10)
	require.NoError(t, err)
	id2, err := reg.CreateProject(fingerprint(2), addr(2), 10)
	require.NoError(t, err)

	require.NoError(t, reg.StartProject(id1))
	require.NoError(t, reg.Participate(id1, addr(10), 11))
	require.NoError(t, reg.FinishProject(id1))
	require.NoError(t, reg.PublishLottery(id1, 5))
	require.NoError(t, reg.SetMerkleRoot(id1, fingerprint(3)))

	evs := reg.ProjectEvents(id1)
	names := make([]string, len(evs))
	for i, ev := range evs {
		names[i] = ev.Name
	}
	require.Equal(t, []string{EventProjectCreated, EventProjectStarted,
		EventParticipated, EventProjectFinished, EventLotteryDrawn,
		EventRootSet}, names)

	evs = reg.ProjectEvents(id2)
	require.Len(t, evs, 1)
	require.Equal(t, EventProjectCreated, evs[0].Name)

	// The participated event carries address and lucky number.
	evs = reg.ProjectEvents(id1)
	require.Equal(t, addr(10).Bytes(), evs[2].Digest)
	require.Equal(t, uint64(11), evs[2].Value)
}
