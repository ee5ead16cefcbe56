package merkle

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func testAddrs(n int) []common.Address {
	addrs := make([]common.Address, n)
	for i := range addrs {
		addrs[i] = common.BytesToAddress([]byte{byte(i + 1)})
	}
	return addrs
}

func TestTree_Empty(t *testing.T) {
	_, err := NewTree(nil)
	require.Error(t, err)
}

func TestTree_SingleLeaf(t *testing.T) {
	addrs := testAddrs(1)
	tree, err := NewTreeAddresses(addrs)
	require.NoError(t, err)
	require.Equal(t, LeafAddress(addrs[0]), tree.Root())

	proof, err := tree.Proof(0)
	require.NoError(t, err)
	require.Empty(t, proof.Siblings)
	require.True(t, Verify(tree.Root(), LeafAddress(addrs[0]), proof))
}

func TestTree_RoundTrip(t *testing.T) {
	// Odd and even leaf counts exercise the promoted-node path.
	for _, n := range []int{2, 3, 4, 5, 7, 8, 16, 33} {
		addrs := testAddrs(n)
		tree, err := NewTreeAddresses(addrs)
		require.NoError(t, err)
		root := tree.Root()

		for i, addr := range addrs {
			proof, err := tree.Proof(i)
			require.NoError(t, err)
			require.True(t, Verify(root, LeafAddress(addr), proof),
				"leaf %d of %d must verify", i, n)
		}

		outside := common.BytesToAddress([]byte{0xff})
		proof, err := tree.Proof(0)
		require.NoError(t, err)
		require.False(t, Verify(root, LeafAddress(outside), proof))
	}
}

func TestTree_ProofForLeaf(t *testing.T) {
	addrs := testAddrs(6)
	tree, err := NewTreeAddresses(addrs)
	require.NoError(t, err)

	leaf := LeafAddress(addrs[4])
	proof, err := tree.ProofForLeaf(leaf)
	require.NoError(t, err)
	require.True(t, Verify(tree.Root(), leaf, proof))

	_, err = tree.ProofForLeaf(LeafAddress(common.BytesToAddress([]byte{0xff})))
	require.Error(t, err)
}

func TestTree_ProofOutOfRange(t *testing.T) {
	tree, err := NewTreeAddresses(testAddrs(3))
	require.NoError(t, err)
	_, err = tree.Proof(-1)
	require.Error(t, err)
	_, err = tree.Proof(3)
	require.Error(t, err)
}

func TestTree_TamperedProof(t *testing.T) {
	addrs := testAddrs(8)
	tree, err := NewTreeAddresses(addrs)
	require.NoError(t, err)

	proof, err := tree.Proof(2)
	require.NoError(t, err)
	proof.Siblings[0][0] ^= 1
	require.False(t, Verify(tree.Root(), LeafAddress(addrs[2]), proof))
}
