// Package fhevm constructs confidential-computation session instances.
// Construction branches purely on chain id: the local development chain
// gets a mock backend derived from node-exposed deployment metadata,
// every other chain gets the production relayer backend behind a
// load-once bundle singleton. Callers receive the same opaque capability
// either way.
package fhevm

import (
	"context"

	"github.com/cipherlink/cipherlink/internal/chain"
)

// Instance is the opaque confidential-session capability handed to the
// messaging layer. Mock and relayer variants implement it; callers
// cannot and should not tell them apart.
type Instance interface {
	// ChainID identifies the chain the instance encrypts for.
	ChainID() chain.ID

	// ACLAddress returns the access-control contract the instance is
	// bound to.
	ACLAddress() string

	// CreateEncryptedInput starts an encrypted input builder for the
	// given contract and user.
	CreateEncryptedInput(contractAddress, userAddress string) EncryptedInput

	// UserDecrypt decrypts ciphertext handles on behalf of the user
	// authorized by the request's signature.
	UserDecrypt(ctx context.Context, req DecryptRequest) (map[string][]byte, error)

	// PublicKey returns the instance's encryption public key.
	PublicKey() []byte
}

// EncryptedInput accumulates plaintext values and produces ciphertext
// handles plus an input proof for contract submission.
type EncryptedInput interface {
	Add64(v uint64) EncryptedInput
	AddBool(v bool) EncryptedInput
	AddBytes(v []byte) EncryptedInput
	Encrypt(ctx context.Context) (*CiphertextBundle, error)
}

// CiphertextBundle is the result of encrypting an input: one handle per
// added value plus a proof binding them to the contract/user pair.
type CiphertextBundle struct {
	Handles    [][]byte
	InputProof []byte
}

// DecryptRequest authorizes decryption of ciphertext handles. The
// signature fields mirror the cached decryption signature.
type DecryptRequest struct {
	Handles           []string
	PublicKey         string
	PrivateKey        string
	Signature         string
	ContractAddresses []string
	UserAddress       string
	StartTimestamp    int64
	DurationDays      int64
}

// InstanceConfig carries the deployment addresses and endpoints an
// instance is constructed from. The relayer path merges the SDK's
// default network configuration with caller overrides; the mock path
// fills it from node metadata.
type InstanceConfig struct {
	ACLAddress               string
	KMSVerifierAddress       string
	InputVerifierAddress     string
	VerifyingContractDecrypt string
	VerifyingContractInput   string
	ChainID                  chain.ID
	GatewayChainID           chain.ID
	RelayerURL               string
	NetworkRPC               string
}
