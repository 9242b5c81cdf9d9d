package model

import (
	"fmt"
	"time"

	"github.com/hupe1980/strata/core"
)

// ValueKind discriminates the storage class of a Value.
type ValueKind uint8

const (
	// KindNum is a 64-bit signed numeric value.
	KindNum ValueKind = iota + 1
	// KindBytes is an opaque byte blob.
	KindBytes
)

// Value is the numeric-XOR-bytes union used by properties and tree nodes.
// Exactly one of the two storage classes must be set; the zero Value is
// invalid and rejected at insert time.
type Value struct {
	Kind  ValueKind `json:"kind"`
	Num   int64     `json:"num,omitempty"`
	Bytes []byte    `json:"bytes,omitempty"`
}

// NumValue returns a numeric Value.
func NumValue(n int64) Value { return Value{Kind: KindNum, Num: n} }

// BytesValue returns an opaque-bytes Value.
func BytesValue(b []byte) Value { return Value{Kind: KindBytes, Bytes: b} }

// Validate reports whether the value sets exactly one storage class.
func (v Value) Validate() error {
	switch v.Kind {
	case KindNum:
		if v.Bytes != nil {
			return fmt.Errorf("value: kind=num but bytes set")
		}
	case KindBytes:
		if v.Num != 0 {
			return fmt.Errorf("value: kind=bytes but num set")
		}
	default:
		return fmt.Errorf("value: unknown kind %d", v.Kind)
	}
	return nil
}

// String renders the value for logs and errors.
func (v Value) String() string {
	if v.Kind == KindNum {
		return fmt.Sprintf("num(%d)", v.Num)
	}
	return fmt.Sprintf("bytes(%d)", len(v.Bytes))
}

// Entity is a live entity row as returned by reads.
type Entity struct {
	ID    core.ID    `json:"id"`
	Ctx   core.Ctx   `json:"ctx"`
	Flags core.Flags `json:"flags"`
}

// Property is a live property row as returned by reads.
type Property struct {
	BaseID core.ID    `json:"base_id"`
	Ctx    core.Ctx   `json:"ctx"`
	Flags  core.Flags `json:"flags"`
	Value  Value      `json:"value"`
}

// Alias is a live alias row as returned by reads.
type Alias struct {
	BaseID core.ID    `json:"base_id"`
	Ctx    core.Ctx   `json:"ctx"`
	Flags  core.Flags `json:"flags"`
	Pos    core.Pos   `json:"pos"`
	Value  string     `json:"value"`
}

// Name is a live name row as returned by reads.
type Name struct {
	BaseID core.ID    `json:"base_id"`
	Ctx    core.Ctx   `json:"ctx"`
	Flags  core.Flags `json:"flags"`
	Pos    core.Pos   `json:"pos"`
	Value  string     `json:"value"`
}

// Relationship is one direction of a logical edge as returned by reads.
// Forward reports which direction's ordering Pos belongs to.
type Relationship struct {
	BaseID  core.ID    `json:"base_id"`
	RelID   core.ID    `json:"rel_id"`
	Ctx     core.Ctx   `json:"ctx"`
	Flags   core.Flags `json:"flags"`
	Forward bool       `json:"forward"`
	Pos     core.Pos   `json:"pos"`
}

// TreeNode is a live tree node row as returned by reads.
type TreeNode struct {
	ID    core.ID    `json:"id"`
	Ctx   core.Ctx   `json:"ctx"`
	Flags core.Flags `json:"flags"`
	Value Value      `json:"value"`
}

// TreeEdge is a live parent/child edge as returned by reads.
type TreeEdge struct {
	ParentID core.ID  `json:"parent_id"`
	ChildID  core.ID  `json:"child_id"`
	Ctx      core.Ctx `json:"ctx"`
	Pos      core.Pos `json:"pos"`
}

// LookupHit is a lookup-index match (hash, prefix or phonetic).
type LookupHit struct {
	BaseID core.ID    `json:"base_id"`
	Ctx    core.Ctx   `json:"ctx"`
	Flags  core.Flags `json:"flags"`
	Value  string     `json:"value"`
}

// Version is one historical state of a logical slot, live or tombstoned.
type Version[R any] struct {
	Row     R
	Removed *time.Time
}

// Live reports whether this version is the current one.
func (v Version[R]) Live() bool { return v.Removed == nil }
