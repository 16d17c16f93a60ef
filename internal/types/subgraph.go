package types

import "time"

// SubgraphVersion is one entry in a SubgraphID's version history.
type SubgraphVersion struct {
	Version    uint32
	CreatedAt  time.Time
	Deployment SubgraphDeploymentID
}

// SubgraphID is a protocol-level identifier for a versioned subgraph. The
// deployment it points to can change over time as new versions are published.
type SubgraphID struct {
	ID           string
	VersionCount uint32
	Versions     []SubgraphVersion
}

// LatestVersion returns the version at index VersionCount-1, or false if the
// subgraph has no published versions.
func (s SubgraphID) LatestVersion() (SubgraphVersion, bool) {
	if s.VersionCount == 0 || len(s.Versions) == 0 {
		return SubgraphVersion{}, false
	}
	for _, v := range s.Versions {
		if v.Version == s.VersionCount-1 {
			return v, true
		}
	}
	return SubgraphVersion{}, false
}

// PreviousVersion returns the version at index VersionCount-2, or false if
// there is none (a subgraph with fewer than two published versions).
func (s SubgraphID) PreviousVersion() (SubgraphVersion, bool) {
	if s.VersionCount < 2 {
		return SubgraphVersion{}, false
	}
	for _, v := range s.Versions {
		if v.Version == s.VersionCount-2 {
			return v, true
		}
	}
	return SubgraphVersion{}, false
}
