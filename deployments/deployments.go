// Package deployments maps Safe singleton addresses to contract versions and lists
// the proxy factories of each version.
package deployments

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v2"
)

//go:embed deployments.yaml
var registryYAML []byte

var ErrInvalidRegistry = errors.New("invalid deployment registry")

type versionEntry struct {
	Version        string   `yaml:"version"`
	Singletons     []string `yaml:"singletons"`
	L2Singletons   []string `yaml:"l2Singletons"`
	ProxyFactories []string `yaml:"proxyFactories"`
}

type registryFile struct {
	Default []versionEntry            `yaml:"default"`
	Chains  map[uint64][]versionEntry `yaml:"chains"`
}

// Deployment is the set of contracts of one Safe version on one chain.
type Deployment struct {
	Version        string
	Singletons     []common.Address
	L2Singletons   []common.Address
	ProxyFactories []common.Address
}

func (d *Deployment) hasSingleton(singleton common.Address) bool {
	for _, list := range [][]common.Address{d.Singletons, d.L2Singletons} {
		for _, addr := range list {
			if addr == singleton {
				return true
			}
		}
	}
	return false
}

type Registry struct {
	defaults []*Deployment
	chains   map[uint64][]*Deployment
}

func parseAddresses(version string, raw []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(raw))
	for _, s := range raw {
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("%w: version %s lists %q", ErrInvalidRegistry, version, s)
		}
		addresses = append(addresses, common.HexToAddress(s))
	}
	return addresses, nil
}

func parseEntries(entries []versionEntry) ([]*Deployment, error) {
	deployments := make([]*Deployment, 0, len(entries))
	for _, entry := range entries {
		if entry.Version == "" {
			return nil, fmt.Errorf("%w: entry without version", ErrInvalidRegistry)
		}
		d := &Deployment{Version: entry.Version}
		var err error
		if d.Singletons, err = parseAddresses(entry.Version, entry.Singletons); err != nil {
			return nil, err
		}
		if d.L2Singletons, err = parseAddresses(entry.Version, entry.L2Singletons); err != nil {
			return nil, err
		}
		if d.ProxyFactories, err = parseAddresses(entry.Version, entry.ProxyFactories); err != nil {
			return nil, err
		}
		deployments = append(deployments, d)
	}
	return deployments, nil
}

// Parse reads a registry in the format of the embedded deployments.yaml.
func Parse(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.UnmarshalStrict(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRegistry, err)
	}
	defaults, err := parseEntries(file.Default)
	if err != nil {
		return nil, err
	}
	r := &Registry{defaults: defaults, chains: make(map[uint64][]*Deployment, len(file.Chains))}
	for chainID, entries := range file.Chains {
		if r.chains[chainID], err = parseEntries(entries); err != nil {
			return nil, fmt.Errorf("chain %d: %w", chainID, err)
		}
	}
	return r, nil
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the embedded registry.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		r, err := Parse(registryYAML)
		if err != nil {
			panic(err)
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

// Deployment returns the contracts of version on chainID. A version listed by the
// chain replaces the default entry.
func (r *Registry) Deployment(chainID uint64, version string) (*Deployment, bool) {
	for _, d := range r.chains[chainID] {
		if d.Version == version {
			return d, true
		}
	}
	for _, d := range r.defaults {
		if d.Version == version {
			return d, true
		}
	}
	return nil, false
}

// Versions returns every version known on chainID.
func (r *Registry) Versions(chainID uint64) []string {
	var versions []string
	seen := make(map[string]bool)
	for _, list := range [][]*Deployment{r.chains[chainID], r.defaults} {
		for _, d := range list {
			if !seen[d.Version] {
				seen[d.Version] = true
				versions = append(versions, d.Version)
			}
		}
	}
	return versions
}

// FindVersion returns the version whose singleton or L2 singleton on chainID is
// singleton.
func (r *Registry) FindVersion(chainID uint64, singleton common.Address) (string, bool) {
	for _, version := range r.Versions(chainID) {
		d, _ := r.Deployment(chainID, version)
		if d.hasSingleton(singleton) {
			return version, true
		}
	}
	return "", false
}

// ProxyFactories returns the proxy factories of version on chainID.
func (r *Registry) ProxyFactories(chainID uint64, version string) []common.Address {
	d, ok := r.Deployment(chainID, version)
	if !ok {
		return nil
	}
	return d.ProxyFactories
}
