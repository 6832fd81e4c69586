package results

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v2"

	"github.com/celer-network/safe-storage-verifier/types"
)

var ErrBadSafesFile = errors.New("bad safes file")

// Report is the exported form of a batch run.
type Report struct {
	ChainID     uint64             `yaml:"chainId"`
	BlockNumber uint64             `yaml:"blockNumber"`
	Counts      map[string]int     `yaml:"counts"`
	Results     *types.BatchResult `yaml:"results"`
}

func NewReport(chainID uint64, block uint64, batch *types.BatchResult) *Report {
	counts := make(map[string]int)
	for status, n := range batch.Counts() {
		counts[status.String()] = n
	}
	return &Report{ChainID: chainID, BlockNumber: block, Counts: counts, Results: batch}
}

// ReportPath is <dir>/<chainID>.yaml.
func ReportPath(dir string, chainID uint64) string {
	return filepath.Join(dir, strconv.FormatUint(chainID, 10)+".yaml")
}

// Export writes report to ReportPath, creating dir when needed.
func Export(dir string, report *Report) (string, error) {
	out, err := yaml.Marshal(report)
	if err != nil {
		return "", err
	}
	return writeFile(ReportPath(dir, report.ChainID), out)
}

// ReadReport reads a report written by Export.
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	report := &Report{}
	if err := yaml.Unmarshal(data, report); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return report, nil
}

// SafesPath is <dir>/<chainID>.yaml.
func SafesPath(dir string, chainID uint64) string {
	return ReportPath(dir, chainID)
}

// WriteSafes writes deployments as a YAML list.
func WriteSafes(path string, safes []types.SafeDeployment) (string, error) {
	out, err := yaml.Marshal(safes)
	if err != nil {
		return "", err
	}
	return writeFile(path, out)
}

// ReadSafes reads the account list of compute-all. The file is YAML or JSON and
// holds either deployments written by WriteSafes or plain addresses.
func ReadSafes(path string) ([]common.Address, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var deployments []types.SafeDeployment
	if err := yaml.Unmarshal(data, &deployments); err == nil {
		safes := make([]common.Address, 0, len(deployments))
		for _, d := range deployments {
			if d.Address == (common.Address{}) {
				return nil, fmt.Errorf("%w: %s: entry without address", ErrBadSafesFile, path)
			}
			safes = append(safes, d.Address)
		}
		return safes, nil
	}

	var raw []string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadSafesFile, path, err)
	}
	safes := make([]common.Address, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("%w: %s: %q is not an address", ErrBadSafesFile, path, s)
		}
		safes = append(safes, common.HexToAddress(s))
	}
	return safes, nil
}

func writeFile(path string, data []byte) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
