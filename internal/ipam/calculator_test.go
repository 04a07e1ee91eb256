package ipam

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/netadmind/netadmind/internal/shared"
)

func TestSubnetInfoFor(t *testing.T) {
	info, err := SubnetInfoFor("192.168.1.0/24")
	require.NoError(t, err)
	require.Equal(t, "192.168.1.0", info.Network)
	require.Equal(t, "255.255.255.0", info.Netmask)
	require.Equal(t, "192.168.1.255", info.Broadcast)
	require.Equal(t, "192.168.1.1", info.FirstHost)
	require.Equal(t, "192.168.1.254", info.LastHost)
	require.Equal(t, 256, info.TotalHosts)
	require.Equal(t, 254, info.UsableHosts)
	require.Equal(t, 24, info.PrefixLength)
}

func TestSubnetInfoForMasksHostBits(t *testing.T) {
	info, err := SubnetInfoFor("10.1.2.3/16")
	require.NoError(t, err)
	require.Equal(t, "10.1.0.0", info.Network)
	require.Equal(t, "10.1.255.255", info.Broadcast)
}

func TestSubnetInfoForPointToPoint(t *testing.T) {
	info, err := SubnetInfoFor("10.0.0.0/31")
	require.NoError(t, err)
	require.Equal(t, 2, info.TotalHosts)
	require.Zero(t, info.UsableHosts)
	require.Equal(t, "10.0.0.0", info.FirstHost)
	require.Equal(t, "10.0.0.1", info.LastHost)
}

func TestSubnetInfoForRejectsBadInput(t *testing.T) {
	_, err := SubnetInfoFor("not-a-network")
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = SubnetInfoFor("2001:db8::/64")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestSplitSubnet(t *testing.T) {
	split, err := SplitSubnet("192.168.0.0/24", 4)
	require.NoError(t, err)
	require.Equal(t, "192.168.0.0/24", split.OriginalNetwork)
	require.Equal(t, []string{
		"192.168.0.0/26",
		"192.168.0.64/26",
		"192.168.0.128/26",
		"192.168.0.192/26",
	}, split.Subnets)
	require.Equal(t, 4, split.SubnetCount)
	require.Equal(t, 62, split.HostsPerSubnet)
}

func TestSplitSubnetRoundsUpToPowerOfTwo(t *testing.T) {
	split, err := SplitSubnet("10.0.0.0/16", 3)
	require.NoError(t, err)
	require.Equal(t, 4, split.SubnetCount)
	require.Equal(t, "10.0.0.0/18", split.Subnets[0])
}

func TestSplitSubnetTooDeep(t *testing.T) {
	_, err := SplitSubnet("10.0.0.0/31", 4)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestMergeSubnets(t *testing.T) {
	merge, err := MergeSubnets([]string{"192.168.0.0/25", "192.168.0.128/25"})
	require.NoError(t, err)
	require.Equal(t, "192.168.0.0/24", merge.MergedNetwork)

	merge, err = MergeSubnets([]string{"10.0.0.0/24", "10.0.3.0/24"})
	require.NoError(t, err)
	require.Equal(t, "10.0.0.0/22", merge.MergedNetwork)
}

func TestMergeSubnetsNeedsTwo(t *testing.T) {
	_, err := MergeSubnets([]string{"10.0.0.0/24"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestValidateNetwork(t *testing.T) {
	ok, canonical := ValidateNetwork("192.168.1.17/24")
	require.True(t, ok)
	require.Equal(t, "192.168.1.0/24", canonical)

	ok, _ = ValidateNetwork("300.0.0.0/8")
	require.False(t, ok)
}
