package ipam

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "10.0.0.5", NormalizeAddress("10.0.0.5/24"))
	assert.Equal(t, "10.0.0.5", NormalizeAddress("  10.0.0.5 "))
	assert.Equal(t, "10.0.0.5", NormalizeAddress("10.0.0.5"))
	assert.Equal(t, "", NormalizeAddress(""))
	assert.Equal(t, "192.168.1.1", NormalizeAddress("192.168.1.1/32"))
}

func TestEnumerateHostsSmallPool(t *testing.T) {
	hosts, err := EnumerateHosts("10.0.0.0/30", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, hosts)
}

func TestEnumerateHostsLimit(t *testing.T) {
	hosts, err := EnumerateHosts("192.168.1.0/24", 10)
	require.NoError(t, err)
	require.Len(t, hosts, 10)
	assert.Equal(t, "192.168.1.1", hosts[0])
	assert.Equal(t, "192.168.1.10", hosts[9])
}

func TestEnumerateHostsFullRange(t *testing.T) {
	hosts, err := EnumerateHosts("192.168.1.0/24", 0)
	require.NoError(t, err)
	require.Len(t, hosts, 254)
	assert.Equal(t, "192.168.1.1", hosts[0])
	assert.Equal(t, "192.168.1.254", hosts[253])
}

func TestEnumerateHostsNoUsableHosts(t *testing.T) {
	for _, cidr := range []string{"10.0.0.0/31", "10.0.0.1/32"} {
		hosts, err := EnumerateHosts(cidr, 0)
		require.NoError(t, err, cidr)
		assert.Empty(t, hosts, cidr)
	}
}

func TestEnumerateHostsNonNetworkBase(t *testing.T) {
	// a host address inside the subnet still enumerates the whole subnet
	hosts, err := EnumerateHosts("10.0.0.17/28", 0)
	require.NoError(t, err)
	require.Len(t, hosts, 14)
	assert.Equal(t, "10.0.0.17", hosts[0])
	assert.Equal(t, "10.0.0.30", hosts[13])
}

func TestEnumerateHostsInvalid(t *testing.T) {
	_, err := EnumerateHosts("not-a-cidr", 0)
	assert.True(t, errors.Is(err, ErrInvalidCIDR))

	_, err = EnumerateHosts("10.0.0.5", 0)
	assert.True(t, errors.Is(err, ErrInvalidCIDR))
}

func TestEnumerateHostsIPv6(t *testing.T) {
	_, err := EnumerateHosts("2001:db8::/64", 0)
	assert.ErrorIs(t, err, ErrIPv6NotSupported)
}

func TestUsableHostCount(t *testing.T) {
	cases := []struct {
		cidr string
		want int
	}{
		{"10.0.0.0/24", 254},
		{"10.0.0.0/30", 2},
		{"10.0.0.0/16", 65534},
		{"10.0.0.0/31", 0},
		{"10.0.0.0/32", 0},
	}
	for _, tc := range cases {
		n, err := UsableHostCount(tc.cidr)
		require.NoError(t, err, tc.cidr)
		assert.Equal(t, tc.want, n, tc.cidr)
	}
}

func TestContains(t *testing.T) {
	assert.True(t, Contains("10.0.0.0/24", "10.0.0.55"))
	assert.True(t, Contains("10.0.0.0/24", "10.0.0.55/24"))
	assert.False(t, Contains("10.0.0.0/24", "10.0.1.1"))
	assert.False(t, Contains("10.0.0.0/24", "garbage"))
	assert.False(t, Contains("garbage", "10.0.0.1"))
}

func TestEnumerateHostsNetworkAndBroadcastExcluded(t *testing.T) {
	hosts, err := EnumerateHosts("10.1.2.0/29", 0)
	require.NoError(t, err)
	assert.NotContains(t, hosts, "10.1.2.0")
	assert.NotContains(t, hosts, "10.1.2.7")
	assert.Len(t, hosts, 6)
}
