package db

import "encoding/binary"

var (
	// NamespaceResult maps chain id | address to the latest result of that account.
	NamespaceResult = []byte("res")
	// NamespaceCheckpoint maps chain id to the last checkpoint summary.
	NamespaceCheckpoint = []byte("cp")
	// NamespaceSafes maps chain id | address to a discovered Safe deployment.
	NamespaceSafes = []byte("safes")
	EmptyKey       = []byte{}
	Separator      = []byte("|")
)

func PrependNamespace(namespace []byte, key []byte) []byte {
	if namespace != nil {
		out := make([]byte, 0, len(namespace)+len(Separator)+len(key))
		out = append(out, namespace...)
		out = append(out, Separator...)
		return append(out, key...)
	}
	return key
}

// TrimNamespace strips the namespace written by PrependNamespace.
func TrimNamespace(namespace []byte, key []byte) []byte {
	if namespace == nil {
		return key
	}
	return key[len(namespace)+len(Separator):]
}

func ConvNilToBytes(byteArray []byte) []byte {
	if byteArray == nil {
		return []byte{}
	}
	return byteArray
}

// ChainKey prefixes parts with the big endian chain id so one chain's keys are
// contiguous.
func ChainKey(chainID uint64, parts ...[]byte) []byte {
	key := binary.BigEndian.AppendUint64(nil, chainID)
	for _, part := range parts {
		key = append(key, part...)
	}
	return key
}
