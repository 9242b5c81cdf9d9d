package engine

import (
	"fmt"
	"time"

	"github.com/hupe1980/strata/core"
	"github.com/hupe1980/strata/model"
)

// Op enumerates the journaled mutation kinds.
type Op uint8

const (
	OpCreateEntity Op = iota + 1
	OpSetEntityFlags
	OpRemoveEntity
	OpRemoveEntityEstate
	OpSetProperty
	OpIncrementProperty
	OpRemoveProperty
	OpSetPropertyFlags
	OpSetAlias
	OpRemoveAlias
	OpReorderAlias
	OpSetAliasFlags
	OpCreateRelationship
	OpRemoveRelationship
	OpReorderRelationship
	OpSetRelationshipFlags
	OpCreateNode
	OpLinkNode
	OpUpdateNode
	OpIncrementNode
	OpMoveNode
	OpReorderEdge
	OpRemoveNode
	OpSetNodeFlags
	OpCreateName
	OpRemoveName
	OpReorderName
	OpSetNameFlags
)

// Mutation is the logical journal record of one committed unit of work.
// Replaying the mutation stream against an empty engine rebuilds the exact
// table state, including tombstone timestamps and allocator positions.
type Mutation struct {
	Op Op        `json:"op"`
	At time.Time `json:"at"`

	Base  core.ID  `json:"base,omitempty"`
	Base2 core.ID  `json:"base2,omitempty"` // MoveNode: new parent
	Rel   core.ID  `json:"rel,omitempty"`
	Ctx   core.Ctx `json:"ctx"`

	Str      string       `json:"str,omitempty"`
	Value    *model.Value `json:"value,omitempty"`
	OldValue *model.Value `json:"old_value,omitempty"`
	Num      int64        `json:"num,omitempty"`
	Limit    *int64       `json:"limit,omitempty"`

	Pos     core.Pos   `json:"pos,omitempty"`
	Pos2    core.Pos   `json:"pos2,omitempty"` // CreateRelationship: reverse position
	Flags   core.Flags `json:"flags,omitempty"`
	Flags2  core.Flags `json:"flags2,omitempty"` // flag ops: bits to clear
	Forward bool       `json:"forward,omitempty"`
}

// Apply executes a replayed mutation against the engine without journaling
// it again. Mutations must be applied in their original commit order.
func (e *Engine) Apply(m Mutation) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch m.Op {
	case OpCreateEntity:
		e.entityIDs.Advance(m.Base)
		_, err := e.entities.InsertLive(m.Base, entityRow{Ctx: m.Ctx, Flags: m.Flags})
		return err
	case OpSetEntityFlags:
		_, err := e.setEntityFlags(m.Base, m.Ctx, m.Flags, m.Flags2, m.At)
		return err
	case OpRemoveEntity:
		return e.removeEntity(m.Base, m.Ctx, m.At)
	case OpRemoveEntityEstate:
		if err := e.removeEntity(m.Base, m.Ctx, m.At); err != nil {
			return err
		}
		e.removeEstate(m.Base, m.At)
		return nil
	case OpSetProperty:
		_, err := e.setProperty(m.Base, m.Ctx, *m.Value, m.Flags, m.At)
		return err
	case OpIncrementProperty:
		_, err := e.incrementProperty(m.Base, m.Ctx, m.Num, m.Limit, m.At)
		return err
	case OpRemoveProperty:
		ref, ok := e.props.QueryLive(ownerKey{Base: m.Base, Ctx: m.Ctx})
		if !ok {
			return ErrNotFound
		}
		return e.props.Tombstone(ref, m.At)
	case OpSetPropertyFlags:
		ref, ok := e.props.QueryLive(ownerKey{Base: m.Base, Ctx: m.Ctx})
		if !ok {
			return ErrNotFound
		}
		row := e.props.Get(ref)
		row.Flags = applyFlags(row.Flags, m.Flags, m.Flags2)
		_, err := e.props.Replace(ref, row, m.At)
		return err
	case OpSetAlias:
		_, err := e.setAlias(m.Base, m.Ctx, m.Str, m.Pos, m.Flags, m.At)
		return err
	case OpRemoveAlias:
		if _, ok := e.aliases.Remove(ownerKey{Base: m.Base, Ctx: m.Ctx}, m.Str, m.At); !ok {
			return ErrNotFound
		}
		e.dropAliasIndexes(m.Base, m.Ctx, m.Str, m.At)
		return nil
	case OpReorderAlias:
		if !e.aliases.Reorder(ownerKey{Base: m.Base, Ctx: m.Ctx}, m.Str, m.Pos) {
			return ErrNotFound
		}
		return nil
	case OpSetAliasFlags:
		_, err := e.setAliasFlags(m.Base, m.Ctx, m.Str, m.Flags, m.Flags2, m.At)
		return err
	case OpCreateRelationship:
		return e.createRelationship(m.Base, m.Rel, m.Ctx, m.Pos, m.Pos2, m.Flags)
	case OpRemoveRelationship:
		e.rels.Remove(relKey{ID: m.Base, Ctx: m.Ctx, Forward: true}, m.Rel, m.At)
		e.rels.Remove(relKey{ID: m.Rel, Ctx: m.Ctx, Forward: false}, m.Base, m.At)
		return nil
	case OpReorderRelationship:
		key, elem := relKey{ID: m.Base, Ctx: m.Ctx, Forward: true}, m.Rel
		if !m.Forward {
			key, elem = relKey{ID: m.Rel, Ctx: m.Ctx, Forward: false}, m.Base
		}
		if !e.rels.Reorder(key, elem, m.Pos) {
			return ErrNotFound
		}
		return nil
	case OpSetRelationshipFlags:
		_, err := e.setRelationshipFlags(m.Base, m.Rel, m.Ctx, m.Flags, m.Flags2, m.At)
		return err
	case OpCreateNode:
		e.nodeIDs.Advance(m.Rel)
		if _, err := e.nodes.InsertLive(m.Rel, nodeRow{Ctx: m.Ctx, Flags: m.Flags, Value: *m.Value}); err != nil {
			return err
		}
		_, err := e.edges.Insert(ownerKey{Base: m.Base, Ctx: m.Ctx}, m.Rel, edgeRow{}, m.Pos)
		return err
	case OpLinkNode:
		return e.linkNode(m.Base, m.Rel, m.Ctx, m.Pos)
	case OpUpdateNode:
		return e.updateNode(m.Rel, m.Ctx, *m.Value, m.OldValue, m.At)
	case OpIncrementNode:
		_, err := e.incrementNode(m.Rel, m.Ctx, m.Num, m.Limit, m.At)
		return err
	case OpMoveNode:
		return e.moveNode(m.Rel, m.Ctx, m.Base, m.Base2, m.Pos, m.At)
	case OpReorderEdge:
		if !e.edges.Reorder(ownerKey{Base: m.Base, Ctx: m.Ctx}, m.Rel, m.Pos) {
			return ErrNotFound
		}
		return nil
	case OpRemoveNode:
		return e.removeNode(m.Rel, m.Ctx, m.Base, m.At)
	case OpSetNodeFlags:
		_, err := e.setNodeFlags(m.Rel, m.Ctx, m.Flags, m.Flags2, m.At)
		return err
	case OpCreateName:
		return e.createName(m.Base, m.Ctx, m.Str, m.Pos, m.Flags)
	case OpRemoveName:
		if _, ok := e.names.Remove(ownerKey{Base: m.Base, Ctx: m.Ctx}, m.Str, m.At); !ok {
			return ErrNotFound
		}
		return nil
	case OpReorderName:
		if !e.names.Reorder(ownerKey{Base: m.Base, Ctx: m.Ctx}, m.Str, m.Pos) {
			return ErrNotFound
		}
		return nil
	case OpSetNameFlags:
		_, err := e.setNameFlags(m.Base, m.Ctx, m.Str, m.Flags, m.Flags2, m.At)
		return err
	default:
		return fmt.Errorf("engine: unknown journal op %d", m.Op)
	}
}
