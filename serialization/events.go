package serialization

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/celer-network/safe-storage-verifier/types"
)

var (
	// SignMsgTopic is keccak256("SignMsg(bytes32)").
	SignMsgTopic = SafeABI.Events["SignMsg"].ID
	// ApproveHashTopic is keccak256("ApproveHash(bytes32,address)").
	ApproveHashTopic = SafeABI.Events["ApproveHash"].ID
	// ProxyCreationTopic is keccak256("ProxyCreation(address,address)").
	ProxyCreationTopic = ProxyFactoryABI.Events["ProxyCreation"].ID

	ErrUnexpectedTopic = errors.New("unexpected event topic")
	ErrMalformedLog    = errors.New("malformed log")
)

// DecodeSignMsg decodes a SignMsg(bytes32 indexed msgHash) log.
func DecodeSignMsg(log *gethtypes.Log) (*types.SignMsgEvent, error) {
	if len(log.Topics) == 0 || log.Topics[0] != SignMsgTopic {
		return nil, ErrUnexpectedTopic
	}
	if len(log.Topics) != 2 {
		return nil, fmt.Errorf("%w: SignMsg with %d topics", ErrMalformedLog, len(log.Topics))
	}
	return &types.SignMsgEvent{MsgHash: log.Topics[1]}, nil
}

// DecodeApproveHash decodes an ApproveHash(bytes32 indexed approvedHash, address indexed owner) log.
func DecodeApproveHash(log *gethtypes.Log) (*types.ApproveHashEvent, error) {
	if len(log.Topics) == 0 || log.Topics[0] != ApproveHashTopic {
		return nil, ErrUnexpectedTopic
	}
	if len(log.Topics) != 3 {
		return nil, fmt.Errorf("%w: ApproveHash with %d topics", ErrMalformedLog, len(log.Topics))
	}
	return &types.ApproveHashEvent{
		Hash:  log.Topics[1],
		Owner: common.BytesToAddress(log.Topics[2].Bytes()),
	}, nil
}

// DecodeProxyCreation decodes a ProxyCreation log. v1.3.0 factories emit both
// addresses in the data, v1.4.1 factories index the proxy.
func DecodeProxyCreation(log *gethtypes.Log) (*types.SafeDeployment, error) {
	if len(log.Topics) == 0 || log.Topics[0] != ProxyCreationTopic {
		return nil, ErrUnexpectedTopic
	}
	deployment := &types.SafeDeployment{BlockNumber: log.BlockNumber}
	switch len(log.Topics) {
	case 1:
		values, err := addressPairArguments.Unpack(log.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedLog, err)
		}
		deployment.Address = values[0].(common.Address)
		deployment.Mastercopy = values[1].(common.Address)
	case 2:
		values, err := addressArguments.Unpack(log.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedLog, err)
		}
		deployment.Address = common.BytesToAddress(log.Topics[1].Bytes())
		deployment.Mastercopy = values[0].(common.Address)
	default:
		return nil, fmt.Errorf("%w: ProxyCreation with %d topics", ErrMalformedLog, len(log.Topics))
	}
	return deployment, nil
}

// SplitEvents files logs into SignMsg and ApproveHash, dropping everything else.
func SplitEvents(logs []gethtypes.Log) *types.Events {
	events := &types.Events{}
	for _, log := range logs {
		if len(log.Topics) == 0 {
			continue
		}
		switch log.Topics[0] {
		case SignMsgTopic:
			events.SignMsg = append(events.SignMsg, log)
		case ApproveHashTopic:
			events.ApproveHash = append(events.ApproveHash, log)
		}
	}
	return events
}
