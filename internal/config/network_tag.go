package config

import (
	"fmt"
	"strings"

	"indexer-agent/internal/errs"
)

// networkAliases maps human-friendly names to their CAIP-2 identifier, per
// spec §6's "aliases are resolved to CAIP-2 form".
var networkAliases = map[string]string{
	"mainnet": "eip155:1",
	"arbitrum-one": "eip155:42161",
	"sepolia": "eip155:11155111",
	"arbitrum-sepolia": "eip155:421614",
}

// ResolveNetworkAlias returns the CAIP-2 form of id, resolving a known alias
// or passing through an already-CAIP-2 identifier unchanged.
func ResolveNetworkAlias(id string) string {
	if caip2, ok := networkAliases[strings.ToLower(id)]; ok {
		return caip2
	}
	return id
}

// TaggedValue is one `<networkId>:<value>` entry from a tagged multi-value
// flag, with the identifier already resolved to CAIP-2 form.
type TaggedValue struct {
	NetworkIdentifier string
	Value             string
}

// ParseTaggedValue splits a `<networkAlias>:<value>` or `<CAIP-2>:<value>`
// flag value. CAIP-2 identifiers themselves contain a colon (`eip155:1`), so
// after an "eip155" prefix the identifier is the first two ":"-delimited
// segments; otherwise the first segment must be a known alias. The value is
// everything after the identifier, colons included.
func ParseTaggedValue(raw string) (TaggedValue, error) {
	parts := strings.SplitN(raw, ":", 3)

	if len(parts) == 3 && strings.EqualFold(parts[0], "eip155") {
		return TaggedValue{NetworkIdentifier: "eip155:" + parts[1], Value: parts[2]}, nil
	}
	if len(parts) >= 2 {
		if caip2, ok := networkAliases[strings.ToLower(parts[0])]; ok {
			return TaggedValue{NetworkIdentifier: caip2, Value: raw[len(parts[0])+1:]}, nil
		}
	}

	return TaggedValue{}, fmt.Errorf("value %q is not tagged with a network identifier", raw)
}

// ValidateTaggedGroups checks the four tagged option groups named in spec
// §6: identical length, identical network-id sets, no duplicates within a
// group. defaultProtocolNetwork must name one of the ids present.
func ValidateTaggedGroups(groups map[string][]TaggedValue, defaultProtocolNetwork string) error {
	var firstLen int
	var firstIDs map[string]bool
	first := true

	for name, values := range groups {
		ids := make(map[string]bool, len(values))
		for _, v := range values {
			if ids[v.NetworkIdentifier] {
				return errs.New(errs.KindConfig, errs.CodeConfigInvalid, "config.ValidateTaggedGroups",
					fmt.Errorf("duplicate network identifier %q within --%s", v.NetworkIdentifier, name))
			}
			ids[v.NetworkIdentifier] = true
		}

		if first {
			firstLen, firstIDs, first = len(values), ids, false
			continue
		}

		if len(values) != firstLen {
			return errs.New(errs.KindConfig, errs.CodeConfigInvalid, "config.ValidateTaggedGroups",
				fmt.Errorf("--%s has %d entries, expected %d to match the other tagged network option groups", name, len(values), firstLen))
		}
		for id := range ids {
			if !firstIDs[id] {
				return errs.New(errs.KindConfig, errs.CodeConfigInvalid, "config.ValidateTaggedGroups",
					fmt.Errorf("network identifier %q in --%s is not present in every tagged network option group", id, name))
			}
		}
	}

	if defaultProtocolNetwork != "" && !firstIDs[ResolveNetworkAlias(defaultProtocolNetwork)] {
		return errs.New(errs.KindConfig, errs.CodeConfigInvalid, "config.ValidateTaggedGroups",
			fmt.Errorf("--default-protocol-network %q does not match any configured network", defaultProtocolNetwork))
	}

	return nil
}
