package logic

import "fmt"

// Cache memoizes unfold results within one recursive descent. Keys are the
// canonical strings of simplified input formulas; values are the simplified
// results of unfolding them against the descent's history. A Cache must
// never be reused across different histories: entries are only valid for
// the exact newest-first suffix they were computed against. Sharing within
// one suffix can only change performance, never results.
type Cache[C comparable] map[string]Formula[C]

// Unfold rewrites a formula by one temporal step against a newest-first
// observation history and returns the rewritten formula together with the
// cache to thread into sibling calls on the same history.
//
// With an empty history only the vacuously satisfied past operators
// collapse: Historically and Triggered become True. Every other formula
// passes through untouched so that obligations seeded before the first
// step stay inspectable.
//
// With a non-empty history the formula is simplified, looked up in the
// cache, and on a miss rewritten by the one-step rule of its head operator:
// atoms evaluate against the newest observation, Next sheds one layer
// (time advances when the caller re-unfolds against a longer history),
// past operators recurse into the remaining history with a fresh cache,
// and the remaining operators expand through their fixpoint identities.
// Weak deliberately expands through the Until continuation, so after one
// step a Weak obligation is indistinguishable from an Until obligation.
// Every result is simplified before it is cached and returned.
//
// Evaluating an atom whose cell or predicate is absent from the newest
// observation is a caller precondition violation and panics.
func Unfold[C comparable](history History[C], cache Cache[C], f Formula[C]) (Formula[C], Cache[C]) {
	if len(history) == 0 {
		switch f.(type) {
		case Historically[C], Triggered[C]:
			return True[C]{}, cache
		}
		return f, cache
	}

	sf := Simplify[C](f)
	switch sf.(type) {
	case True[C], False[C]:
		// Constants reset the threaded cache.
		return sf, Cache[C]{}
	}
	if cache == nil {
		cache = Cache[C]{}
	}
	key := sf.String()
	if hit, ok := cache[key]; ok {
		return hit, cache
	}

	var result Formula[C]
	newest, rest := history[0], history[1:]
	switch sf := sf.(type) {
	case Check[C]:
		v, ok := newest.Holds(sf.Predicate)
		if !ok {
			panic(fmt.Sprintf("logic: predicate %q not evaluated by newest observation", sf.Predicate.Name))
		}
		result = constant[C](v)
	case Update[C]:
		got, ok := newest.UpdatedWith(sf.Cell)
		if !ok {
			panic(fmt.Sprintf("logic: cell %v not updated by newest observation", sf.Cell))
		}
		result = constant[C](got.Equal(sf.Signal))
	case Not[C]:
		var operand Formula[C]
		operand, cache = Unfold(history, cache, sf.Operand)
		result = Not[C]{Operand: operand}
	case And[C]:
		operands := make([]Formula[C], len(sf.Operands))
		for i, operand := range sf.Operands {
			operands[i], cache = Unfold(history, cache, operand)
		}
		result = And[C]{Operands: operands}
	case Or[C]:
		operands := make([]Formula[C], len(sf.Operands))
		for i, operand := range sf.Operands {
			operands[i], cache = Unfold(history, cache, operand)
		}
		result = Or[C]{Operands: operands}
	case Next[C]:
		result = sf.Operand
	case Previous[C]:
		if len(rest) == 0 {
			result = False[C]{}
		} else {
			past, _ := Unfold(rest, Cache[C]{}, sf.Operand)
			result, cache = Unfold(history, cache, past)
		}
	case Historically[C]:
		onRest, _ := Unfold(rest, Cache[C]{}, sf)
		result, cache = Unfold(history, cache, And[C]{Operands: []Formula[C]{sf.Operand, onRest}})
	case Triggered[C]:
		onRest, _ := Unfold(rest, Cache[C]{}, sf)
		held := Or[C]{Operands: []Formula[C]{sf.Left, onRest}}
		result, cache = Unfold(history, cache, And[C]{Operands: []Formula[C]{sf.Right, held}})
	case Once[C]:
		result, cache = Unfold(history, cache, Or[C]{Operands: []Formula[C]{
			sf.Operand,
			Previous[C]{Operand: sf},
		}})
	case Since[C]:
		result, cache = Unfold(history, cache, Or[C]{Operands: []Formula[C]{
			sf.Right,
			And[C]{Operands: []Formula[C]{sf.Left, Previous[C]{Operand: sf}}},
		}})
	case Globally[C]:
		result, cache = Unfold(history, cache, And[C]{Operands: []Formula[C]{
			sf.Operand,
			Next[C]{Operand: sf},
		}})
	case Finally[C]:
		result, cache = Unfold(history, cache, Or[C]{Operands: []Formula[C]{
			sf.Operand,
			Next[C]{Operand: sf},
		}})
	case Until[C]:
		result, cache = Unfold(history, cache, Or[C]{Operands: []Formula[C]{
			sf.Right,
			And[C]{Operands: []Formula[C]{sf.Left, Next[C]{Operand: sf}}},
		}})
	case Weak[C]:
		result, cache = Unfold(history, cache, Or[C]{Operands: []Formula[C]{
			sf.Right,
			And[C]{Operands: []Formula[C]{sf.Left, Next[C]{Operand: Until[C]{Left: sf.Left, Right: sf.Right}}}},
		}})
	case Release[C]:
		result, cache = Unfold(history, cache, Weak[C]{
			Left:  sf.Right,
			Right: And[C]{Operands: []Formula[C]{sf.Left, sf.Right}},
		})
	case Implies[C]:
		result, cache = Unfold(history, cache, Or[C]{Operands: []Formula[C]{
			Not[C]{Operand: sf.Left},
			sf.Right,
		}})
	case Equiv[C]:
		result, cache = Unfold(history, cache, And[C]{Operands: []Formula[C]{
			Implies[C]{Left: sf.Left, Right: sf.Right},
			Implies[C]{Left: sf.Right, Right: sf.Left},
		}})
	default:
		panic("logic: unknown formula variant")
	}

	result = Simplify[C](result)
	cache[key] = result
	return result, cache
}

func constant[C comparable](v bool) Formula[C] {
	if v {
		return True[C]{}
	}
	return False[C]{}
}
