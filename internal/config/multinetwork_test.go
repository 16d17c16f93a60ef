package config

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/gomega"
)

const validSpecYAML = `
networkIdentifier: mainnet
gatewayUrl: https://gateway.example.com
providerUrl: https://provider.example.com
indexer:
  address: "0x1234567890123456789012345678901234567890"
  mnemonic: "test test test test test test test test test test test junk"
  allocationManagement: auto
subgraphs:
  networkSubgraphEndpoint: https://subgraph.example.com
contracts:
  staking: "0x1111111111111111111111111111111111111a"
  serviceRegistry: "0x1111111111111111111111111111111111111b"
  controller: "0x1111111111111111111111111111111111111c"
  epochManager: "0x1111111111111111111111111111111111111d"
operatorPrivateKey: "0xaaaa"
graphNode:
  queryEndpoint: http://graph-node:8000
  statusEndpoint: http://graph-node:8030
  adminEndpoint: http://graph-node:8020
supportedChains:
  - eip155:1
`

func writeSpecFile(t *testing.T, dir, name, contents string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o600); err != nil {
		t.Fatalf("write spec file: %s", err)
	}
}

func TestLoadNetworkSpecificationsParsesAValidFile(t *testing.T) {
	g := NewWithT(t)
	dir := t.TempDir()
	writeSpecFile(t, dir, "mainnet.yaml", validSpecYAML)

	specs, err := LoadNetworkSpecifications(dir)

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(specs).To(HaveLen(1))
	g.Expect(specs[0].NetworkIdentifier).To(Equal("eip155:1"))
	g.Expect(specs[0].OperatorPrivateKey).To(Equal("0xaaaa"))
	g.Expect(specs[0].SupportedChains).To(ConsistOf("eip155:1"))
}

func TestLoadNetworkSpecificationsRejectsDuplicateNetworkIdentifiers(t *testing.T) {
	g := NewWithT(t)
	dir := t.TempDir()
	writeSpecFile(t, dir, "a.yaml", validSpecYAML)
	writeSpecFile(t, dir, "b.yaml", validSpecYAML)

	_, err := LoadNetworkSpecifications(dir)
	g.Expect(err).To(HaveOccurred())
}

func TestLoadNetworkSpecificationsRejectsEmptyDirectory(t *testing.T) {
	g := NewWithT(t)
	dir := t.TempDir()

	_, err := LoadNetworkSpecifications(dir)
	g.Expect(err).To(HaveOccurred())
}

func TestLoadNetworkSpecificationsRejectsInvalidIndexerAddress(t *testing.T) {
	g := NewWithT(t)
	dir := t.TempDir()
	writeSpecFile(t, dir, "bad.yaml", `
networkIdentifier: mainnet
indexer:
  address: "not-an-address"
subgraphs:
  networkSubgraphEndpoint: https://subgraph.example.com
`)

	_, err := LoadNetworkSpecifications(dir)
	g.Expect(err).To(HaveOccurred())
}

func TestLoadNetworkSpecificationsRejectsMissingSubgraphSource(t *testing.T) {
	g := NewWithT(t)
	dir := t.TempDir()
	writeSpecFile(t, dir, "bad.yaml", `
networkIdentifier: mainnet
indexer:
  address: "0x1234567890123456789012345678901234567890"
`)

	_, err := LoadNetworkSpecifications(dir)
	g.Expect(err).To(HaveOccurred())
}
