// Package types holds the data model shared across the reconciliation engine:
// deployments, subgraphs, indexing rules, allocations and the decisions and
// disputes derived from them.
package types

import (
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"
)

// SubgraphDeploymentID is a content address for a subgraph deployment. It has
// two interchangeable encodings - a 32-byte value and a base58 IPFS CID - but
// equality is always decided on the 32-byte form.
type SubgraphDeploymentID struct {
	bytes32 [32]byte
}

// NewDeploymentID builds a SubgraphDeploymentID from either encoding. An
// ipfsHash starts with "Qm" (base58, 46 chars); anything else is parsed as a
// hex-encoded bytes32, with or without the "0x" prefix.
func NewDeploymentID(s string) (SubgraphDeploymentID, error) {
	if len(s) > 1 && s[0:2] == "Qm" {
		return deploymentIDFromIPFSHash(s)
	}
	return deploymentIDFromBytes32Hex(s)
}

// NewDeploymentIDFromBytes32 builds a SubgraphDeploymentID directly from its
// 32-byte canonical form, e.g. as returned by a contract read.
func NewDeploymentIDFromBytes32(b [32]byte) SubgraphDeploymentID {
	return SubgraphDeploymentID{bytes32: b}
}

// MustNewDeploymentID is NewDeploymentID but panics on error; used for
// compile-time-known identifiers such as the always-on network subgraph.
func MustNewDeploymentID(s string) SubgraphDeploymentID {
	id, err := NewDeploymentID(s)
	if err != nil {
		panic(err)
	}
	return id
}

func deploymentIDFromIPFSHash(hash string) (SubgraphDeploymentID, error) {
	raw, err := base58.Decode(hash)
	if err != nil {
		return SubgraphDeploymentID{}, fmt.Errorf("invalid ipfs hash %q: %w", hash, err)
	}
	// multihash prefix (sha2-256, 32 bytes): 0x12 0x20 followed by the digest
	if len(raw) != 34 || raw[0] != 0x12 || raw[1] != 0x20 {
		return SubgraphDeploymentID{}, fmt.Errorf("invalid ipfs hash %q: unexpected multihash encoding", hash)
	}
	var id SubgraphDeploymentID
	copy(id.bytes32[:], raw[2:])
	return id, nil
}

func deploymentIDFromBytes32Hex(s string) (SubgraphDeploymentID, error) {
	trimmed := s
	if len(trimmed) >= 2 && trimmed[0:2] == "0x" {
		trimmed = trimmed[2:]
	}
	if len(trimmed) != 64 {
		return SubgraphDeploymentID{}, fmt.Errorf("invalid deployment id %q: expected a bytes32 hex value or an ipfs hash", s)
	}
	h := common.HexToHash(s)
	return SubgraphDeploymentID{bytes32: [32]byte(h)}, nil
}

// Bytes32 returns the 32-byte canonical form.
func (d SubgraphDeploymentID) Bytes32() [32]byte {
	return d.bytes32
}

// IPFSHash returns the base58 multihash (CID v0) encoding.
func (d SubgraphDeploymentID) IPFSHash() string {
	raw := make([]byte, 0, 34)
	raw = append(raw, 0x12, 0x20)
	raw = append(raw, d.bytes32[:]...)
	return base58.Encode(raw)
}

// Hex returns the 0x-prefixed hex encoding of the 32-byte form.
func (d SubgraphDeploymentID) Hex() string {
	return "0x" + hex.EncodeToString(d.bytes32[:])
}

// Equal compares two deployment ids on their 32-byte canonical form.
func (d SubgraphDeploymentID) Equal(other SubgraphDeploymentID) bool {
	return d.bytes32 == other.bytes32
}

func (d SubgraphDeploymentID) String() string {
	return d.IPFSHash()
}
