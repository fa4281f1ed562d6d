package logic

// References collects every cell and predicate term a formula mentions.
// Cells come from update targets, signal terms, and predicate terms;
// predicates come from Check atoms. Both lists preserve first-appearance
// order and contain no duplicates.
func References[C comparable](f Formula[C]) ([]C, []PredicateTerm[C]) {
	c := &collector[C]{
		seenCells: map[C]bool{},
		seenPreds: map[string]bool{},
	}
	c.walk(f)
	return c.cells, c.preds
}

type collector[C comparable] struct {
	cells     []C
	preds     []PredicateTerm[C]
	seenCells map[C]bool
	seenPreds map[string]bool
}

func (c *collector[C]) walk(f Formula[C]) {
	switch f := f.(type) {
	case True[C], False[C]:
	case Check[C]:
		if !c.seenPreds[f.Predicate.Name] {
			c.seenPreds[f.Predicate.Name] = true
			c.preds = append(c.preds, f.Predicate)
		}
		c.addCells(f.Predicate.Cells)
	case Update[C]:
		c.addCells([]C{f.Cell})
		c.addCells(f.Signal.Cells)
	case Not[C]:
		c.walk(f.Operand)
	case And[C]:
		for _, operand := range f.Operands {
			c.walk(operand)
		}
	case Or[C]:
		for _, operand := range f.Operands {
			c.walk(operand)
		}
	case Next[C]:
		c.walk(f.Operand)
	case Previous[C]:
		c.walk(f.Operand)
	case Historically[C]:
		c.walk(f.Operand)
	case Once[C]:
		c.walk(f.Operand)
	case Globally[C]:
		c.walk(f.Operand)
	case Finally[C]:
		c.walk(f.Operand)
	case Triggered[C]:
		c.walk(f.Left)
		c.walk(f.Right)
	case Since[C]:
		c.walk(f.Left)
		c.walk(f.Right)
	case Until[C]:
		c.walk(f.Left)
		c.walk(f.Right)
	case Weak[C]:
		c.walk(f.Left)
		c.walk(f.Right)
	case Release[C]:
		c.walk(f.Left)
		c.walk(f.Right)
	case Implies[C]:
		c.walk(f.Left)
		c.walk(f.Right)
	case Equiv[C]:
		c.walk(f.Left)
		c.walk(f.Right)
	default:
		panic("logic: unknown formula variant")
	}
}

func (c *collector[C]) addCells(cells []C) {
	for _, cell := range cells {
		if !c.seenCells[cell] {
			c.seenCells[cell] = true
			c.cells = append(c.cells, cell)
		}
	}
}
