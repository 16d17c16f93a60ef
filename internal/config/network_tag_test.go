package config

import (
	"testing"

	. "github.com/onsi/gomega"
)

func TestResolveNetworkAliasResolvesKnownAliases(t *testing.T) {
	g := NewWithT(t)

	g.Expect(ResolveNetworkAlias("mainnet")).To(Equal("eip155:1"))
	g.Expect(ResolveNetworkAlias("Mainnet")).To(Equal("eip155:1"))
	g.Expect(ResolveNetworkAlias("arbitrum-one")).To(Equal("eip155:42161"))
}

func TestResolveNetworkAliasPassesThroughCAIP2(t *testing.T) {
	g := NewWithT(t)

	g.Expect(ResolveNetworkAlias("eip155:1")).To(Equal("eip155:1"))
	g.Expect(ResolveNetworkAlias("eip155:999999")).To(Equal("eip155:999999"))
}

func TestParseTaggedValueResolvesAlias(t *testing.T) {
	g := NewWithT(t)

	tv, err := ParseTaggedValue("mainnet:https://example.com/subgraph")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(tv.NetworkIdentifier).To(Equal("eip155:1"))
	g.Expect(tv.Value).To(Equal("https://example.com/subgraph"))
}

func TestParseTaggedValueHandlesCAIP2Identifier(t *testing.T) {
	g := NewWithT(t)

	tv, err := ParseTaggedValue("eip155:42161:https://example.com/subgraph")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(tv.NetworkIdentifier).To(Equal("eip155:42161"))
	g.Expect(tv.Value).To(Equal("https://example.com/subgraph"))
}

func TestParseTaggedValueRejectsUntaggedInput(t *testing.T) {
	g := NewWithT(t)

	_, err := ParseTaggedValue("https://example.com/subgraph")
	g.Expect(err).To(HaveOccurred())
}

func TestValidateTaggedGroupsAcceptsMatchingGroups(t *testing.T) {
	g := NewWithT(t)

	groups := map[string][]TaggedValue{
		"network-subgraph-endpoint": {{NetworkIdentifier: "eip155:1", Value: "a"}, {NetworkIdentifier: "eip155:42161", Value: "b"}},
		"indexer-address":           {{NetworkIdentifier: "eip155:1", Value: "c"}, {NetworkIdentifier: "eip155:42161", Value: "d"}},
	}

	err := ValidateTaggedGroups(groups, "mainnet")
	g.Expect(err).NotTo(HaveOccurred())
}

func TestValidateTaggedGroupsRejectsDuplicateWithinGroup(t *testing.T) {
	g := NewWithT(t)

	groups := map[string][]TaggedValue{
		"network-subgraph-endpoint": {{NetworkIdentifier: "eip155:1", Value: "a"}, {NetworkIdentifier: "eip155:1", Value: "b"}},
	}

	err := ValidateTaggedGroups(groups, "")
	g.Expect(err).To(HaveOccurred())
}

func TestValidateTaggedGroupsRejectsLengthMismatch(t *testing.T) {
	g := NewWithT(t)

	groups := map[string][]TaggedValue{
		"network-subgraph-endpoint": {{NetworkIdentifier: "eip155:1", Value: "a"}, {NetworkIdentifier: "eip155:42161", Value: "b"}},
		"indexer-address":           {{NetworkIdentifier: "eip155:1", Value: "c"}},
	}

	err := ValidateTaggedGroups(groups, "")
	g.Expect(err).To(HaveOccurred())
}

func TestValidateTaggedGroupsRejectsMismatchedNetworkSets(t *testing.T) {
	g := NewWithT(t)

	groups := map[string][]TaggedValue{
		"network-subgraph-endpoint": {{NetworkIdentifier: "eip155:1", Value: "a"}},
		"indexer-address":           {{NetworkIdentifier: "eip155:42161", Value: "c"}},
	}

	err := ValidateTaggedGroups(groups, "")
	g.Expect(err).To(HaveOccurred())
}

func TestValidateTaggedGroupsRejectsUnknownDefaultProtocolNetwork(t *testing.T) {
	g := NewWithT(t)

	groups := map[string][]TaggedValue{
		"network-subgraph-endpoint": {{NetworkIdentifier: "eip155:1", Value: "a"}},
	}

	err := ValidateTaggedGroups(groups, "arbitrum-one")
	g.Expect(err).To(HaveOccurred())
}
