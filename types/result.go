package types

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Status classifies the outcome of verifying one account.
type Status int

const (
	StatusSuccess Status = iota
	StatusMismatch
	StatusError
	StatusUnsupported
	StatusNotASafe
)

var statusNames = map[Status]string{
	StatusSuccess:     "success",
	StatusMismatch:    "mismatch",
	StatusError:       "error",
	StatusUnsupported: "unsupported",
	StatusNotASafe:    "notASafe",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	for status, name := range statusNames {
		if name == string(text) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", text)
}

// AllStatuses lists every status in reporting order.
func AllStatuses() []Status {
	return []Status{StatusSuccess, StatusMismatch, StatusError, StatusUnsupported, StatusNotASafe}
}

// VerificationResult is the outcome for one account. Expected is the root reported by
// the chain, Actual the reconstructed one.
type VerificationResult struct {
	Address     common.Address `yaml:"address" json:"address"`
	BlockNumber uint64         `yaml:"blockNumber" json:"blockNumber"`
	Version     string         `yaml:"version,omitempty" json:"version,omitempty"`
	Expected    common.Hash    `yaml:"expected,omitempty" json:"expected,omitempty"`
	Actual      common.Hash    `yaml:"actual,omitempty" json:"actual,omitempty"`
	Matched     bool           `yaml:"matched" json:"matched"`
	Status      Status         `yaml:"status" json:"status"`
	Err         string         `yaml:"error,omitempty" json:"error,omitempty"`
}

// BatchResult accumulates results of a multi account run, one list per status.
type BatchResult struct {
	Success     []*VerificationResult `yaml:"success,omitempty" json:"success"`
	Mismatch    []*VerificationResult `yaml:"mismatch,omitempty" json:"mismatch"`
	Error       []*VerificationResult `yaml:"error,omitempty" json:"error"`
	Unsupported []*VerificationResult `yaml:"unsupported,omitempty" json:"unsupported"`
	NotASafe    []*VerificationResult `yaml:"notASafe,omitempty" json:"notASafe"`
}

// Add files r under its status.
func (b *BatchResult) Add(r *VerificationResult) {
	switch r.Status {
	case StatusSuccess:
		b.Success = append(b.Success, r)
	case StatusMismatch:
		b.Mismatch = append(b.Mismatch, r)
	case StatusUnsupported:
		b.Unsupported = append(b.Unsupported, r)
	case StatusNotASafe:
		b.NotASafe = append(b.NotASafe, r)
	default:
		b.Error = append(b.Error, r)
	}
}

// List returns the results recorded under s.
func (b *BatchResult) List(s Status) []*VerificationResult {
	switch s {
	case StatusSuccess:
		return b.Success
	case StatusMismatch:
		return b.Mismatch
	case StatusError:
		return b.Error
	case StatusUnsupported:
		return b.Unsupported
	case StatusNotASafe:
		return b.NotASafe
	}
	return nil
}

// Counts returns the number of results per status.
func (b *BatchResult) Counts() map[Status]int {
	counts := make(map[Status]int, len(statusNames))
	for _, s := range AllStatuses() {
		counts[s] = len(b.List(s))
	}
	return counts
}

// Total returns the number of accounts processed.
func (b *BatchResult) Total() int {
	total := 0
	for _, n := range b.Counts() {
		total += n
	}
	return total
}
