package engine

import (
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/hupe1980/strata/core"
	"github.com/hupe1980/strata/model"
)

// lookupEntry is one row of a secondary alias index. Secondary indexes carry
// no uniqueness contract and never reject a write; they are tombstoned in
// the same unit of work as the alias row they shadow.
type lookupEntry struct {
	Ctx     core.Ctx   `json:"ctx"`
	Value   string     `json:"value"`
	Code    string     `json:"code,omitempty"` // phonetic index only
	Base    core.ID    `json:"base"`
	Flags   core.Flags `json:"flags"`
	Removed *time.Time `json:"removed,omitempty"`
}

// prefixIndex supports ordered range scans over live alias values per ctx.
type prefixIndex struct {
	rows []lookupEntry
	live map[core.Ctx][]uint32 // slots sorted by (value, base)
}

func newPrefixIndex() *prefixIndex {
	return &prefixIndex{live: make(map[core.Ctx][]uint32)}
}

func (x *prefixIndex) less(slot uint32, value string, base core.ID) bool {
	r := &x.rows[slot]
	if r.Value != value {
		return r.Value < value
	}
	return r.Base < base
}

func (x *prefixIndex) insert(ctx core.Ctx, value string, base core.ID, flags core.Flags) {
	slot := uint32(len(x.rows))
	x.rows = append(x.rows, lookupEntry{Ctx: ctx, Value: value, Base: base, Flags: flags})
	ord := x.live[ctx]
	i := sort.Search(len(ord), func(i int) bool { return !x.less(ord[i], value, base) })
	x.live[ctx] = slices.Insert(ord, i, slot)
}

func (x *prefixIndex) remove(ctx core.Ctx, value string, base core.ID, at time.Time) bool {
	ord := x.live[ctx]
	i := sort.Search(len(ord), func(i int) bool { return !x.less(ord[i], value, base) })
	if i >= len(ord) {
		return false
	}
	r := &x.rows[ord[i]]
	if r.Value != value || r.Base != base {
		return false
	}
	ts := at
	r.Removed = &ts
	x.live[ctx] = slices.Delete(ord, i, i+1)
	return true
}

// scan returns live entries whose value starts with prefix, ordered by
// value, beginning strictly after startAfter.
func (x *prefixIndex) scan(ctx core.Ctx, prefix, startAfter string, limit int) []model.LookupHit {
	ord := x.live[ctx]
	from := prefix
	if startAfter >= prefix {
		from = startAfter
	}
	i := sort.Search(len(ord), func(i int) bool {
		r := &x.rows[ord[i]]
		return r.Value > from || (r.Value == from && from != startAfter)
	})
	var hits []model.LookupHit
	for ; i < len(ord); i++ {
		r := &x.rows[ord[i]]
		if !strings.HasPrefix(r.Value, prefix) {
			break
		}
		hits = append(hits, model.LookupHit{BaseID: r.Base, Ctx: ctx, Flags: r.Flags, Value: r.Value})
		if limit > 0 && len(hits) >= limit {
			break
		}
	}
	return hits
}

func (x *prefixIndex) setFlags(ctx core.Ctx, value string, base core.ID, flags core.Flags) {
	ord := x.live[ctx]
	i := sort.Search(len(ord), func(i int) bool { return !x.less(ord[i], value, base) })
	if i < len(ord) {
		if r := &x.rows[ord[i]]; r.Value == value && r.Base == base {
			r.Flags = flags
		}
	}
}

func (x *prefixIndex) dump() []lookupEntry { return slices.Clone(x.rows) }

func (x *prefixIndex) load(rows []lookupEntry) {
	x.rows = slices.Clone(rows)
	x.live = make(map[core.Ctx][]uint32)
	for i := range x.rows {
		r := &x.rows[i]
		if r.Removed == nil {
			x.live[r.Ctx] = append(x.live[r.Ctx], uint32(i))
		}
	}
	for ctx, ord := range x.live {
		slices.SortFunc(ord, func(a, b uint32) int {
			ra, rb := &x.rows[a], &x.rows[b]
			if ra.Value != rb.Value {
				return strings.Compare(ra.Value, rb.Value)
			}
			return int(ra.Base - rb.Base)
		})
		x.live[ctx] = ord
	}
}

// phoneticIndex buckets live alias values by phonetic code per ctx. It keeps
// the raw value next to the code so callers can re-rank the coarse bucket by
// literal similarity.
type phoneticIndex struct {
	rows []lookupEntry
	live map[core.Ctx]map[string][]uint32 // code -> slots, insertion order
}

func newPhoneticIndex() *phoneticIndex {
	return &phoneticIndex{live: make(map[core.Ctx]map[string][]uint32)}
}

func (x *phoneticIndex) insert(ctx core.Ctx, code, value string, base core.ID, flags core.Flags) {
	slot := uint32(len(x.rows))
	x.rows = append(x.rows, lookupEntry{Ctx: ctx, Value: value, Code: code, Base: base, Flags: flags})
	buckets := x.live[ctx]
	if buckets == nil {
		buckets = make(map[string][]uint32)
		x.live[ctx] = buckets
	}
	buckets[code] = append(buckets[code], slot)
}

func (x *phoneticIndex) remove(ctx core.Ctx, code, value string, base core.ID, at time.Time) bool {
	bucket := x.live[ctx][code]
	for i, slot := range bucket {
		r := &x.rows[slot]
		if r.Value == value && r.Base == base {
			ts := at
			r.Removed = &ts
			x.live[ctx][code] = slices.Delete(bucket, i, i+1)
			return true
		}
	}
	return false
}

func (x *phoneticIndex) scan(ctx core.Ctx, code string, limit int) []model.LookupHit {
	var hits []model.LookupHit
	for _, slot := range x.live[ctx][code] {
		r := &x.rows[slot]
		hits = append(hits, model.LookupHit{BaseID: r.Base, Ctx: ctx, Flags: r.Flags, Value: r.Value})
		if limit > 0 && len(hits) >= limit {
			break
		}
	}
	return hits
}

func (x *phoneticIndex) setFlags(ctx core.Ctx, code, value string, base core.ID, flags core.Flags) {
	for _, slot := range x.live[ctx][code] {
		r := &x.rows[slot]
		if r.Value == value && r.Base == base {
			r.Flags = flags
			return
		}
	}
}

func (x *phoneticIndex) dump() []lookupEntry { return slices.Clone(x.rows) }

func (x *phoneticIndex) load(rows []lookupEntry) {
	x.rows = slices.Clone(rows)
	x.live = make(map[core.Ctx]map[string][]uint32)
	for i := range x.rows {
		r := &x.rows[i]
		if r.Removed != nil {
			continue
		}
		buckets := x.live[r.Ctx]
		if buckets == nil {
			buckets = make(map[string][]uint32)
			x.live[r.Ctx] = buckets
		}
		buckets[r.Code] = append(buckets[r.Code], uint32(i))
	}
}
