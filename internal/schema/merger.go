package schema

import (
	"fmt"
	"sort"

	"github.com/IngaleChinmay04/MongoNexus/internal/docpath"
)

// DefaultMaxExamples is how many example values a field keeps.
const DefaultMaxExamples = 3

// Options bound the per-field detail a schema carries.
type Options struct {
	MaxDepth    int
	MaxExamples int
	MaxDistinct int
}

// DefaultOptions returns the defaults used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		MaxDepth:    DefaultMaxDepth,
		MaxExamples: DefaultMaxExamples,
		MaxDistinct: DefaultMaxDistinct,
	}
}

// Merger folds per-document observations into one AggregateSchema.
// A Merger is not safe for concurrent use; build one per goroutine and
// combine the results with Merge.
type Merger struct {
	opts Options
	acc  *AggregateSchema
}

// NewMerger returns an empty Merger.
func NewMerger(opts Options) *Merger {
	return &Merger{opts: opts, acc: NewAggregateSchema()}
}

// Add records one document.
func (m *Merger) Add(obs Observations) {
	m.mergeInto(m.acc, m.lift(obs))
}

// AddSchema folds an already aggregated schema in.
func (m *Merger) AddSchema(s *AggregateSchema) {
	if s == nil {
		return
	}
	m.mergeInto(m.acc, s)
}

// Count returns the number of documents recorded so far.
func (m *Merger) Count() int { return m.acc.TotalSampled }

// Result returns a snapshot of the aggregate; later Adds do not affect it.
func (m *Merger) Result() *AggregateSchema {
	return m.acc.Clone()
}

// Merge combines two schemas with the default options. Neither input is
// modified.
func Merge(a, b *AggregateSchema) *AggregateSchema {
	return NewMerger(DefaultOptions()).Merge(a, b)
}

// Merge combines two schemas using m's options. Neither input is modified.
func (m *Merger) Merge(a, b *AggregateSchema) *AggregateSchema {
	out := NewAggregateSchema()
	if a != nil {
		m.mergeInto(out, a)
	}
	if b != nil {
		m.mergeInto(out, b)
	}
	return out
}

// lift turns one document's observations into a schema of one document.
func (m *Merger) lift(obs Observations) *AggregateSchema {
	s := &AggregateSchema{TotalSampled: 1, Fields: make(map[string]*FieldStats, len(obs))}
	for name, o := range obs {
		s.Fields[name] = m.liftField(o)
	}
	return s
}

func (m *Merger) liftField(o *FieldObservation) *FieldStats {
	f := &FieldStats{
		Types:        Set(o.Type),
		Count:        1,
		TotalSampled: 1,
	}
	switch o.Type {
	case TypeNull:
		f.NullCount = 1
	case TypeObject:
		f.Nested = m.lift(o.Fields)
	case TypeArray:
		items := NewAggregateSchema()
		for _, el := range o.Elements {
			unit := &AggregateSchema{
				TotalSampled: 1,
				Fields:       map[string]*FieldStats{docpath.ItemMarker: m.liftField(el)},
			}
			m.mergeInto(items, unit)
		}
		f.Items = items
	}
	if o.Example != nil && m.opts.MaxExamples > 0 {
		f.Examples = []interface{}{o.Example}
	}
	if o.Profile != nil {
		f.Strings = capProfile(o.Profile.Clone(), m.opts.MaxDistinct)
	}
	return f
}

// mergeInto adds src into dst. src is never aliased by dst.
func (m *Merger) mergeInto(dst, src *AggregateSchema) {
	dst.TotalSampled += src.TotalSampled
	for name, sf := range src.Fields {
		df, ok := dst.Fields[name]
		if !ok {
			dst.Fields[name] = sf.Clone()
			continue
		}
		m.mergeField(df, sf)
	}
	for _, f := range dst.Fields {
		f.TotalSampled = dst.TotalSampled
	}
}

func (m *Merger) mergeField(dst, src *FieldStats) {
	dst.Types = dst.Types.Union(src.Types)
	dst.Count += src.Count
	dst.NullCount += src.NullCount

	switch {
	case src.Nested == nil:
	case dst.Nested == nil:
		dst.Nested = src.Nested.Clone()
	default:
		m.mergeInto(dst.Nested, src.Nested)
	}

	switch {
	case src.Items == nil:
	case dst.Items == nil:
		dst.Items = src.Items.Clone()
	default:
		m.mergeInto(dst.Items, src.Items)
	}

	dst.Examples = mergeExamples(dst.Examples, src.Examples, m.opts.MaxExamples)
	if dst.Strings != nil || src.Strings != nil {
		dst.Strings = mergeProfiles(dst.Strings, src.Strings, m.opts.MaxDistinct)
	}
}

// mergeExamples keeps the n smallest distinct examples by canonical key,
// which makes the outcome independent of merge order.
func mergeExamples(a, b []interface{}, n int) []interface{} {
	if n <= 0 || (len(a) == 0 && len(b) == 0) {
		return nil
	}
	type keyed struct {
		key string
		val interface{}
	}
	seen := make(map[string]bool, len(a)+len(b))
	all := make([]keyed, 0, len(a)+len(b))
	for _, list := range [][]interface{}{a, b} {
		for _, v := range list {
			k := exampleKey(v)
			if seen[k] {
				continue
			}
			seen[k] = true
			all = append(all, keyed{k, v})
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].key < all[j].key })
	if len(all) > n {
		all = all[:n]
	}
	out := make([]interface{}, len(all))
	for i, kv := range all {
		out[i] = kv.val
	}
	return out
}

func exampleKey(v interface{}) string {
	return fmt.Sprintf("%02d|%T|%v", Classify(v), v, v)
}
