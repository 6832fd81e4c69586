package deployments

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	mainnet = 1
	zkSync  = 324
)

func TestFindVersion(t *testing.T) {
	r := Default()
	tests := []struct {
		chainID   uint64
		singleton string
		version   string
	}{
		{mainnet, "0xb6029EA3B2c51D09a50B53CA8012FeEB05bDa35A", "1.0.0"},
		{mainnet, "0x34CfAC646f301356fAa8B21e94227e3583Fe3F5F", "1.1.1"},
		{mainnet, "0x6851D6fDFAfD08c0295C392436245E5bc78B0185", "1.2.0"},
		{mainnet, "0xd9Db270c1B5E3Bd161E8c8503c55cEABeE709552", "1.3.0"},
		{mainnet, "0x3E5c63644E683549055b9Be8653de26E0B4CD36E", "1.3.0"},
		{10, "0x69f4D1788e39c87893C980c06EdF4b7f686e2938", "1.3.0"},
		{10, "0xfb1bffC9d739B8D520DaF37dF666da4C687191EA", "1.3.0"},
		{mainnet, "0x41675C099F32341bf84BFc5382aF534df5C7461a", "1.4.1"},
		{100, "0x29fcB43b46531BcA003ddC8FCB67FFE91900C762", "1.4.1"},
		{zkSync, "0x1727c2c531cf966f902E5927b98490fDFb3b2b70", "1.3.0"},
		{zkSync, "0x41675C099F32341bf84BFc5382aF534df5C7461a", "1.4.1"},
	}
	for _, tt := range tests {
		version, ok := r.FindVersion(tt.chainID, common.HexToAddress(tt.singleton))
		require.True(t, ok, "%s on %d", tt.singleton, tt.chainID)
		assert.Equal(t, tt.version, version)
	}

	_, ok := r.FindVersion(mainnet, common.HexToAddress("0x1234"))
	assert.False(t, ok)

	// the zkSync entry replaces the default 1.3.0 singletons there
	_, ok = r.FindVersion(zkSync, common.HexToAddress("0xd9Db270c1B5E3Bd161E8c8503c55cEABeE709552"))
	assert.False(t, ok)
}

func TestProxyFactories(t *testing.T) {
	r := Default()
	assert.Equal(t, []common.Address{common.HexToAddress("0x4e1DCf7AD4e460CfD30791CCC4F9c8a4f820ec67")}, r.ProxyFactories(mainnet, "1.4.1"))
	assert.Len(t, r.ProxyFactories(mainnet, "1.3.0"), 2)
	assert.Equal(t, []common.Address{common.HexToAddress("0xDAec33641865E4651fB43181C6DB6f7232Ee91c2")}, r.ProxyFactories(zkSync, "1.3.0"))
	assert.Empty(t, r.ProxyFactories(mainnet, "9.9.9"))
}

func TestVersions(t *testing.T) {
	assert.Equal(t, []string{"1.0.0", "1.1.1", "1.2.0", "1.3.0", "1.4.1"}, Default().Versions(mainnet))
	assert.Equal(t, []string{"1.3.0", "1.0.0", "1.1.1", "1.2.0", "1.4.1"}, Default().Versions(zkSync))
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte("default:\n  - version: \"1.3.0\"\n    singletons: [\"0xnothex\"]\n"))
	assert.ErrorIs(t, err, ErrInvalidRegistry)

	_, err = Parse([]byte("default:\n  - singletons: []\n"))
	assert.ErrorIs(t, err, ErrInvalidRegistry)

	_, err = Parse([]byte("unknown: 1\n"))
	assert.ErrorIs(t, err, ErrInvalidRegistry)
}

func TestVersionCache(t *testing.T) {
	cache, err := NewVersionCache(Default(), 2)
	require.NoError(t, err)

	singleton := common.HexToAddress("0x41675C099F32341bf84BFc5382aF534df5C7461a")
	for i := 0; i < 3; i++ {
		version, ok := cache.FindVersion(mainnet, singleton)
		require.True(t, ok)
		assert.Equal(t, "1.4.1", version)
	}
	assert.Equal(t, 1, cache.Len())

	_, ok := cache.FindVersion(mainnet, common.HexToAddress("0x1234"))
	assert.False(t, ok)
	assert.Equal(t, 1, cache.Len())

	_, ok = cache.FindVersion(zkSync, singleton)
	assert.True(t, ok)
	_, ok = cache.FindVersion(10, singleton)
	assert.True(t, ok)
	assert.Equal(t, 2, cache.Len())
}
