// Package keys implements deterministic derivation of the ephemeral
// allocation signing key described in the allocation reconciler design: a
// fresh key is derived per opened allocation from the indexer's mnemonic,
// used once to sign the open transaction's proof of control, and never
// persisted - it can always be rederived from (mnemonic, epoch, deployment,
// salt).
package keys

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"

	"indexer-agent/internal/types"
)

// AllocationKey is an ephemeral keypair derived for a single allocation
// open. Only Address is ever put on chain; PrivateKey lives in memory only
// long enough to sign the proof of control.
type AllocationKey struct {
	PrivateKey *ecdsa.PrivateKey
	Address    common.Address
}

// maxCollisionSalt bounds the salted-retry loop in Derive; in practice a
// collision with an existing allocation id is astronomically unlikely and
// this only guards against an infinite loop if it ever happens.
const maxCollisionSalt = 1 << 16

// Derive computes the allocation key for (mnemonic, epoch, deployment),
// salting with successive integers and retrying if the resulting address
// collides with any of existingActive - per spec §4.8's uniqueness
// requirement, derivation is deterministic but salted to guarantee no two
// concurrently active allocations for this indexer ever share an id.
func Derive(mnemonic string, epoch uint64, deployment types.SubgraphDeploymentID, existingActive []common.Address) (AllocationKey, error) {
	seed := bip39.NewSeed(mnemonic, "")

	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return AllocationKey{}, fmt.Errorf("derive master key: %w", err)
	}

	for salt := uint32(0); salt < maxCollisionSalt; salt++ {
		key, err := deriveAtSalt(master, epoch, deployment, salt)
		if err != nil {
			return AllocationKey{}, err
		}
		if !collides(key.Address, existingActive) {
			return key, nil
		}
	}

	return AllocationKey{}, fmt.Errorf("could not derive a collision-free allocation key for deployment %s after %d attempts", deployment, maxCollisionSalt)
}

// deriveAtSalt hashes (epoch, deployment) down to a BIP-32 child index path
// off the mnemonic-derived master key, with salt as the path's last index.
func deriveAtSalt(master *hdkeychain.ExtendedKey, epoch uint64, deployment types.SubgraphDeploymentID, salt uint32) (AllocationKey, error) {
	h := sha256.New()
	var epochBuf [8]byte
	binary.BigEndian.PutUint64(epochBuf[:], epoch)
	h.Write(epochBuf[:])
	b32 := deployment.Bytes32()
	h.Write(b32[:])
	digest := h.Sum(nil)

	// Turn the digest into a short BIP-32 path: four hardened-safe,
	// non-hardened 31-bit indices derived from the digest, plus the
	// collision salt as a fifth index.
	path := []uint32{
		binary.BigEndian.Uint32(digest[0:4]) & 0x7fffffff,
		binary.BigEndian.Uint32(digest[4:8]) & 0x7fffffff,
		binary.BigEndian.Uint32(digest[8:12]) & 0x7fffffff,
		binary.BigEndian.Uint32(digest[12:16]) & 0x7fffffff,
		salt,
	}

	child := master
	for _, idx := range path {
		next, err := child.Derive(idx)
		if err != nil {
			return AllocationKey{}, fmt.Errorf("derive child key at index %d: %w", idx, err)
		}
		child = next
	}

	ecPriv, err := child.ECPrivKey()
	if err != nil {
		return AllocationKey{}, fmt.Errorf("extract private key: %w", err)
	}

	privKey := ecPriv.ToECDSA()
	// btcec and go-ethereum both use secp256k1; re-wrap so downstream code
	// only deals in go-ethereum's ecdsa.PrivateKey / crypto.PubkeyToAddress.
	privKey.Curve = btcec.S256()

	return AllocationKey{
		PrivateKey: privKey,
		Address:    crypto.PubkeyToAddress(privKey.PublicKey),
	}, nil
}

func collides(addr common.Address, existing []common.Address) bool {
	for _, e := range existing {
		if e == addr {
			return true
		}
	}
	return false
}

// ProofOfControl signs keccak256(abi.encodePacked(indexer, allocationID))
// with the allocation key, proving control of the ephemeral key to the
// staking contract at open time.
func ProofOfControl(key AllocationKey, indexer common.Address) ([65]byte, error) {
	msg := crypto.Keccak256(indexer.Bytes(), key.Address.Bytes())
	sig, err := crypto.Sign(msg, key.PrivateKey)
	if err != nil {
		return [65]byte{}, fmt.Errorf("sign proof of control: %w", err)
	}
	var out [65]byte
	copy(out[:], sig)
	return out, nil
}
