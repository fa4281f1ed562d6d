package logic

// Simplify structurally reduces the Boolean skeleton of a formula. It
// recurses through every operand, flattens nested conjunctions and
// disjunctions of the same kind, drops neutral constants, short-circuits on
// absorbing constants, removes duplicated operands keeping the rightmost
// copy, and folds Implies/Equiv against constant sides. It never rewrites
// temporal structure and never eliminates double negation.
//
// Simplify is idempotent: Simplify(Simplify(f)) equals Simplify(f).
func Simplify[C comparable](f Formula[C]) Formula[C] {
	switch f := f.(type) {
	case True[C], False[C], Check[C], Update[C]:
		return f
	case Not[C]:
		return foldNot[C](Simplify[C](f.Operand))
	case And[C]:
		operands, short := gather(f.Operands, true)
		if short {
			return False[C]{}
		}
		operands = dedupRightmost(operands)
		switch len(operands) {
		case 0:
			return True[C]{}
		case 1:
			return operands[0]
		}
		return And[C]{Operands: operands}
	case Or[C]:
		operands, short := gather(f.Operands, false)
		if short {
			return True[C]{}
		}
		operands = dedupRightmost(operands)
		switch len(operands) {
		case 0:
			return False[C]{}
		case 1:
			return operands[0]
		}
		return Or[C]{Operands: operands}
	case Next[C]:
		return Next[C]{Operand: Simplify[C](f.Operand)}
	case Previous[C]:
		return Previous[C]{Operand: Simplify[C](f.Operand)}
	case Historically[C]:
		return Historically[C]{Operand: Simplify[C](f.Operand)}
	case Once[C]:
		return Once[C]{Operand: Simplify[C](f.Operand)}
	case Globally[C]:
		return Globally[C]{Operand: Simplify[C](f.Operand)}
	case Finally[C]:
		return Finally[C]{Operand: Simplify[C](f.Operand)}
	case Triggered[C]:
		return Triggered[C]{Left: Simplify[C](f.Left), Right: Simplify[C](f.Right)}
	case Since[C]:
		return Since[C]{Left: Simplify[C](f.Left), Right: Simplify[C](f.Right)}
	case Until[C]:
		return Until[C]{Left: Simplify[C](f.Left), Right: Simplify[C](f.Right)}
	case Weak[C]:
		return Weak[C]{Left: Simplify[C](f.Left), Right: Simplify[C](f.Right)}
	case Release[C]:
		return Release[C]{Left: Simplify[C](f.Left), Right: Simplify[C](f.Right)}
	case Implies[C]:
		left, right := Simplify[C](f.Left), Simplify[C](f.Right)
		if isFalse[C](left) || isTrue[C](right) {
			return True[C]{}
		}
		if isTrue[C](left) {
			return right
		}
		if isFalse[C](right) {
			return foldNot[C](left)
		}
		return Implies[C]{Left: left, Right: right}
	case Equiv[C]:
		left, right := Simplify[C](f.Left), Simplify[C](f.Right)
		if isTrue[C](left) {
			return right
		}
		if isTrue[C](right) {
			return left
		}
		if isFalse[C](left) {
			return foldNot[C](right)
		}
		if isFalse[C](right) {
			return foldNot[C](left)
		}
		return Equiv[C]{Left: left, Right: right}
	default:
		panic("logic: unknown formula variant")
	}
}

// gather simplifies the operands of a conjunction (conj true) or
// disjunction (conj false), flattening same-kind nesting and dropping the
// neutral constant. It reports short = true when an absorbing constant was
// found, in which case the returned operands are meaningless.
func gather[C comparable](operands []Formula[C], conj bool) ([]Formula[C], bool) {
	out := make([]Formula[C], 0, len(operands))
	for _, operand := range operands {
		s := Simplify[C](operand)
		switch s := s.(type) {
		case True[C]:
			if !conj {
				return nil, true
			}
		case False[C]:
			if conj {
				return nil, true
			}
		case And[C]:
			if conj {
				out = append(out, s.Operands...)
			} else {
				out = append(out, s)
			}
		case Or[C]:
			if !conj {
				out = append(out, s.Operands...)
			} else {
				out = append(out, s)
			}
		default:
			out = append(out, s)
		}
	}
	return out, false
}

// dedupRightmost drops an operand exactly when an identical one appears
// further right, so the rightmost copy of each duplicate survives.
func dedupRightmost[C comparable](operands []Formula[C]) []Formula[C] {
	if len(operands) < 2 {
		return operands
	}
	keys := make([]string, len(operands))
	for i, operand := range operands {
		keys[i] = operand.String()
	}
	out := make([]Formula[C], 0, len(operands))
	for i, operand := range operands {
		dup := false
		for _, later := range keys[i+1:] {
			if later == keys[i] {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, operand)
		}
	}
	return out
}

func foldNot[C comparable](f Formula[C]) Formula[C] {
	switch f.(type) {
	case True[C]:
		return False[C]{}
	case False[C]:
		return True[C]{}
	}
	return Not[C]{Operand: f}
}

func isTrue[C comparable](f Formula[C]) bool {
	_, ok := f.(True[C])
	return ok
}

func isFalse[C comparable](f Formula[C]) bool {
	_, ok := f.(False[C])
	return ok
}
