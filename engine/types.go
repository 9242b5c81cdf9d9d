package engine

import (
	"crypto/sha1"

	"github.com/hupe1980/strata/core"
	"github.com/hupe1980/strata/model"
)

// ownerKey scopes a row group to its owning object within one namespace.
type ownerKey struct {
	Base core.ID  `json:"base"`
	Ctx  core.Ctx `json:"ctx"`
}

// hashKey is the uniqueness anchor of the alias table: one live owner per
// value digest per namespace.
type hashKey struct {
	Digest [sha1.Size]byte `json:"digest"`
	Ctx    core.Ctx        `json:"ctx"`
}

func aliasDigest(value string, ctx core.Ctx) hashKey {
	return hashKey{Digest: sha1.Sum([]byte(value)), Ctx: ctx}
}

// relKey identifies one direction's ordered edge list of a node.
type relKey struct {
	ID      core.ID  `json:"id"`
	Ctx     core.Ctx `json:"ctx"`
	Forward bool     `json:"forward"`
}

type entityRow struct {
	Ctx   core.Ctx   `json:"ctx"`
	Flags core.Flags `json:"flags"`
}

type propertyRow struct {
	Flags core.Flags  `json:"flags"`
	Value model.Value `json:"value"`
}

type aliasRow struct {
	Flags core.Flags `json:"flags"`
}

type nameRow struct {
	Flags core.Flags `json:"flags"`
}

type lookupRow struct {
	Base  core.ID    `json:"base"`
	Flags core.Flags `json:"flags"`
}

type relRow struct {
	Flags core.Flags `json:"flags"`
}

type nodeRow struct {
	Ctx   core.Ctx    `json:"ctx"`
	Flags core.Flags  `json:"flags"`
	Value model.Value `json:"value"`
}

type edgeRow struct{}

func applyFlags(old, add, clear core.Flags) core.Flags {
	return (old | add) &^ clear
}
