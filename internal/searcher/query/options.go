package query

// OptionKey names a per-query OPTION directive.
type OptionKey string

const (
	OptionMaxMatches      OptionKey = "max_matches"
	OptionRanker          OptionKey = "ranker"
	OptionFieldWeights    OptionKey = "field_weights"
	OptionIndexWeights    OptionKey = "index_weights"
	OptionCutoff          OptionKey = "cutoff"
	OptionMaxQueryTime    OptionKey = "max_query_time"
	OptionComment         OptionKey = "comment"
	OptionReverseScan     OptionKey = "reverse_scan"
	OptionSortMethod      OptionKey = "sort_method"
	OptionBooleanSimplify OptionKey = "boolean_simplify"
	OptionIDF             OptionKey = "idf"
)

// OptionValue is one of Int, Float, String, Expression or Weights.
type OptionValue interface {
	optionValue()
}

// Int is rendered bare.
type Int int64

// Float is rendered bare.
type Float float64

// String is bound as a quoted parameter.
type String string

// Weight is one name=value pair of field_weights or index_weights.
type Weight struct {
	Name  string
	Value int
}

// Weights renders as (name=value, ...).
type Weights []Weight

func (Int) optionValue()        {}
func (Float) optionValue()      {}
func (String) optionValue()     {}
func (Expression) optionValue() {}
func (Weights) optionValue()    {}

type option struct {
	key   OptionKey
	value OptionValue
}

// Options is an insertion-ordered OPTION table. Setting an existing key
// replaces its value in place. The zero value is empty and ready to use.
type Options struct {
	entries []option
}

func (o *Options) Set(key OptionKey, value OptionValue) {
	for i := range o.entries {
		if o.entries[i].key == key {
			o.entries[i].value = value
			return
		}
	}
	o.entries = append(o.entries, option{key: key, value: value})
}

func (o *Options) Get(key OptionKey) (OptionValue, bool) {
	for _, e := range o.entries {
		if e.key == key {
			return e.value, true
		}
	}
	return nil, false
}

func (o *Options) Has(key OptionKey) bool {
	_, ok := o.Get(key)
	return ok
}

func (o *Options) Delete(key OptionKey) {
	for i, e := range o.entries {
		if e.key == key {
			o.entries = append(o.entries[:i], o.entries[i+1:]...)
			return
		}
	}
}

func (o *Options) Len() int { return len(o.entries) }

// Each visits options in insertion order.
func (o *Options) Each(fn func(key OptionKey, value OptionValue)) {
	for _, e := range o.entries {
		fn(e.key, e.value)
	}
}

// MaxMatches returns the result window bound when it is set as an Int.
func (o *Options) MaxMatches() (int64, bool) {
	v, ok := o.Get(OptionMaxMatches)
	if !ok {
		return 0, false
	}
	n, ok := v.(Int)
	return int64(n), ok
}

func (o Options) clone() Options {
	out := Options{entries: make([]option, len(o.entries))}
	for i, e := range o.entries {
		switch v := e.value.(type) {
		case Weights:
			e.value = append(Weights(nil), v...)
		case Expression:
			v.Args = append([]any(nil), v.Args...)
			e.value = v
		}
		out.entries[i] = e
	}
	return out
}
