package contracts

import (
	"testing"

	"github.com/dedis/fairticket/core"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/cothority/v3/byzcoin"
	"go.dedis.ch/protobuf"
)

func TestArgCodecs(t *testing.T) {
	addr := common.BytesToAddress([]byte{1, 2, 3})
	hash := common.BytesToHash([]byte{4, 5, 6})
	args := byzcoin.Arguments{
		{Name: "id", Value: Uint64Arg(12345)},
		{Name: "addr", Value: addr.Bytes()},
		{Name: "root", Value: hash.Bytes()},
		{Name: "short", Value: []byte{1}},
	}

	id, err := argUint64(args, "id")
	require.NoError(t, err)
	require.Equal(t, uint64(12345), id)

	got, err := argAddress(args, "addr")
	require.NoError(t, err)
	require.Equal(t, addr, got)

	gotHash, err := argHash(args, "root")
	require.NoError(t, err)
	require.Equal(t, hash, gotHash)

	// Wrong length and missing arguments both fail.
	_, err = argUint64(args, "short")
	require.Error(t, err)
	_, err = argAddress(args, "root")
	require.Error(t, err)
	_, err = argHash(args, "addr")
	require.Error(t, err)
	_, err = argUint64(args, "missing")
	require.Error(t, err)
}

func TestContractFromBytes(t *testing.T) {
	reg := core.NewRegistry("ed25519:deadbeef", 3)
	_, err := reg.CreateProject(common.BytesToHash([]byte{1}),
		common.BytesToAddress([]byte{2}), 10)
	require.NoError(t, err)

	buf, err := protobuf.Encode(reg)
	require.NoError(t, err)

	c, err := ContractFairTicketFromBytes(buf)
	require.NoError(t, err)
	ft := c.(*ContractFairTicket)
	require.Equal(t, "ed25519:deadbeef", ft.Registry.Admin)
	require.Equal(t, uint64(4), ft.Registry.NextID)
	require.Len(t, ft.Registry.Projects, 1)
}
