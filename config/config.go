// Package config reads the verifier settings from viper. Flags bound by the CLI
// override the YAML file, which overrides the defaults set here.
package config

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	KeyNetworks           = "networks"
	KeyAlchemyAPIKey      = "alchemyApiKey"
	KeyInfuraAPIKey       = "infuraApiKey"
	KeyRPCAuthToken       = "rpcAuthToken"
	KeyMaxBlockRange      = "maxBlockRange"
	KeyConcurrency        = "concurrency"
	KeyCheckpointInterval = "checkpointInterval"
	KeyAccountTimeout     = "accountTimeout"
	KeyDBDir              = "dbDir"
	KeyResultsDir         = "resultsDir"
	KeySafesDir           = "safesDir"
	KeyFromBlock          = "fromBlock"
	KeyVerifyProofs       = "verifyProofs"

	envPrefix      = "SAFEVERIFY"
	DefaultNetwork = "mainnet"
)

var ErrUnknownNetwork = errors.New("unknown network")

// Network is one chain the verifier can talk to. Alchemy and Infura are endpoint
// prefixes completed with the API key when one is configured.
type Network struct {
	Name     string `mapstructure:"-"`
	ChainID  uint64 `mapstructure:"chainId"`
	RPC      string `mapstructure:"rpc"`
	ProofRPC string `mapstructure:"proofRpc"`
	Alchemy  string `mapstructure:"alchemy"`
	Infura   string `mapstructure:"infura"`
}

// Endpoint picks Alchemy, then Infura when their key is set, then the public RPC.
func (n Network) Endpoint(alchemyKey, infuraKey string) string {
	switch {
	case alchemyKey != "" && n.Alchemy != "":
		return strings.TrimSuffix(n.Alchemy, "/") + "/" + alchemyKey
	case infuraKey != "" && n.Infura != "":
		return strings.TrimSuffix(n.Infura, "/") + "/" + infuraKey
	default:
		return n.RPC
	}
}

// ProofEndpoint is the endpoint serving eth_getProof. Some providers do not
// implement it, such networks set proofRpc.
func (n Network) ProofEndpoint(alchemyKey, infuraKey string) string {
	if n.ProofRPC != "" {
		return n.ProofRPC
	}
	return n.Endpoint(alchemyKey, infuraKey)
}

type Config struct {
	Networks           map[string]Network
	AlchemyAPIKey      string
	InfuraAPIKey       string
	RPCAuthToken       string
	MaxBlockRange      uint64
	Concurrency        int
	CheckpointInterval int
	AccountTimeout     time.Duration
	DBDir              string
	ResultsDir         string
	SafesDir           string
	FromBlock          uint64
	VerifyProofs       bool
}

var builtinNetworks = map[string]Network{
	"mainnet": {
		ChainID: 1,
		RPC:     "https://cloudflare-eth.com",
		Alchemy: "https://eth-mainnet.g.alchemy.com/v2",
		Infura:  "https://mainnet.infura.io/v3",
	},
	"sepolia": {
		ChainID: 11155111,
		RPC:     "https://rpc.sepolia.org",
		Alchemy: "https://eth-sepolia.g.alchemy.com/v2",
		Infura:  "https://sepolia.infura.io/v3",
	},
	"optimism": {
		ChainID: 10,
		RPC:     "https://mainnet.optimism.io",
		Alchemy: "https://opt-mainnet.g.alchemy.com/v2",
		Infura:  "https://optimism-mainnet.infura.io/v3",
	},
	"arbitrum": {
		ChainID: 42161,
		RPC:     "https://arb1.arbitrum.io/rpc",
		Alchemy: "https://arb-mainnet.g.alchemy.com/v2",
		Infura:  "https://arbitrum-mainnet.infura.io/v3",
	},
	"polygon": {
		ChainID: 137,
		RPC:     "https://polygon-rpc.com",
		Alchemy: "https://polygon-mainnet.g.alchemy.com/v2",
		Infura:  "https://polygon-mainnet.infura.io/v3",
	},
	"base": {
		ChainID: 8453,
		RPC:     "https://mainnet.base.org",
		Alchemy: "https://base-mainnet.g.alchemy.com/v2",
	},
	// the public Gnosis endpoints do not serve eth_getProof
	"gnosis": {
		ChainID:  100,
		RPC:      "https://rpc.gnosischain.com",
		ProofRPC: "https://rpc.ankr.com/gnosis",
	},
}

// SetDefaults registers default values and the environment binding on v.
func SetDefaults(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// camelCase keys do not map to env names by themselves
	_ = v.BindEnv(KeyAlchemyAPIKey, envPrefix+"_ALCHEMY_API_KEY")
	_ = v.BindEnv(KeyInfuraAPIKey, envPrefix+"_INFURA_API_KEY")
	_ = v.BindEnv(KeyRPCAuthToken, envPrefix+"_RPC_AUTH_TOKEN")

	v.SetDefault(KeyMaxBlockRange, 0)
	v.SetDefault(KeyConcurrency, 1)
	v.SetDefault(KeyCheckpointInterval, 100)
	v.SetDefault(KeyAccountTimeout, 5*time.Minute)
	v.SetDefault(KeyDBDir, "./data/db")
	v.SetDefault(KeyResultsDir, "./artifacts/results")
	v.SetDefault(KeySafesDir, "./artifacts/safes")
	v.SetDefault(KeyFromBlock, 0)
	v.SetDefault(KeyVerifyProofs, true)
}

// Load builds a Config from v. Networks from the configuration are merged over the
// built in ones field by field.
func Load(v *viper.Viper) (*Config, error) {
	c := &Config{
		Networks:           make(map[string]Network, len(builtinNetworks)),
		AlchemyAPIKey:      v.GetString(KeyAlchemyAPIKey),
		InfuraAPIKey:       v.GetString(KeyInfuraAPIKey),
		RPCAuthToken:       v.GetString(KeyRPCAuthToken),
		MaxBlockRange:      v.GetUint64(KeyMaxBlockRange),
		Concurrency:        v.GetInt(KeyConcurrency),
		CheckpointInterval: v.GetInt(KeyCheckpointInterval),
		AccountTimeout:     v.GetDuration(KeyAccountTimeout),
		DBDir:              v.GetString(KeyDBDir),
		ResultsDir:         v.GetString(KeyResultsDir),
		SafesDir:           v.GetString(KeySafesDir),
		FromBlock:          v.GetUint64(KeyFromBlock),
		VerifyProofs:       v.GetBool(KeyVerifyProofs),
	}
	for name, n := range builtinNetworks {
		n.Name = name
		c.Networks[name] = n
	}

	var configured map[string]Network
	if err := v.UnmarshalKey(KeyNetworks, &configured); err != nil {
		return nil, fmt.Errorf("config %s: %w", KeyNetworks, err)
	}
	for name, n := range configured {
		name = strings.ToLower(name)
		merged := c.Networks[name]
		merged.Name = name
		if n.ChainID != 0 {
			merged.ChainID = n.ChainID
		}
		if n.RPC != "" {
			merged.RPC = n.RPC
		}
		if n.ProofRPC != "" {
			merged.ProofRPC = n.ProofRPC
		}
		if n.Alchemy != "" {
			merged.Alchemy = n.Alchemy
		}
		if n.Infura != "" {
			merged.Infura = n.Infura
		}
		if merged.ChainID == 0 {
			return nil, fmt.Errorf("network %s: chainId is required", name)
		}
		c.Networks[name] = merged
	}

	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	return c, nil
}

// ResolveNetwork finds a network by name or by decimal chain id.
func (c *Config) ResolveNetwork(input string) (Network, error) {
	input = strings.ToLower(strings.TrimSpace(input))
	if n, ok := c.Networks[input]; ok {
		return n, nil
	}
	if chainID, err := strconv.ParseUint(input, 10, 64); err == nil {
		for _, name := range c.NetworkNames() {
			if n := c.Networks[name]; n.ChainID == chainID {
				return n, nil
			}
		}
	}
	return Network{}, fmt.Errorf("%w %q, known: %s", ErrUnknownNetwork, input, strings.Join(c.NetworkNames(), ", "))
}

// NetworkNames returns the configured network names, sorted.
func (c *Config) NetworkNames() []string {
	names := make([]string, 0, len(c.Networks))
	for name := range c.Networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
