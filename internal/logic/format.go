package logic

import "strings"

// Format renders a formula for display, resolving cell identifiers through
// the provided naming function. Unlike String it uses infix connectives and
// is not canonical; use it for user-facing output only.
func Format[C comparable](f Formula[C], cellName func(C) string) string {
	switch f := f.(type) {
	case True[C]:
		return "true"
	case False[C]:
		return "false"
	case Check[C]:
		return f.Predicate.Name
	case Update[C]:
		return "[" + cellName(f.Cell) + " <- " + f.Signal.Name + "]"
	case Not[C]:
		return "!" + formatOperand(f.Operand, cellName)
	case And[C]:
		return formatJoin(f.Operands, " && ", cellName)
	case Or[C]:
		return formatJoin(f.Operands, " || ", cellName)
	case Next[C]:
		return "X " + formatOperand(f.Operand, cellName)
	case Previous[C]:
		return "Y " + formatOperand(f.Operand, cellName)
	case Historically[C]:
		return "H " + formatOperand(f.Operand, cellName)
	case Once[C]:
		return "O " + formatOperand(f.Operand, cellName)
	case Globally[C]:
		return "G " + formatOperand(f.Operand, cellName)
	case Finally[C]:
		return "F " + formatOperand(f.Operand, cellName)
	case Triggered[C]:
		return formatInfix(f.Left, "T", f.Right, cellName)
	case Since[C]:
		return formatInfix(f.Left, "S", f.Right, cellName)
	case Until[C]:
		return formatInfix(f.Left, "U", f.Right, cellName)
	case Weak[C]:
		return formatInfix(f.Left, "W", f.Right, cellName)
	case Release[C]:
		return formatInfix(f.Left, "R", f.Right, cellName)
	case Implies[C]:
		return formatInfix(f.Left, "->", f.Right, cellName)
	case Equiv[C]:
		return formatInfix(f.Left, "<->", f.Right, cellName)
	default:
		panic("logic: unknown formula variant")
	}
}

func formatInfix[C comparable](left Formula[C], op string, right Formula[C], cellName func(C) string) string {
	return formatOperand(left, cellName) + " " + op + " " + formatOperand(right, cellName)
}

func formatOperand[C comparable](f Formula[C], cellName func(C) string) string {
	switch f.(type) {
	case True[C], False[C], Check[C], Update[C]:
		return Format(f, cellName)
	}
	return "(" + Format(f, cellName) + ")"
}

func formatJoin[C comparable](operands []Formula[C], sep string, cellName func(C) string) string {
	if len(operands) == 0 {
		if sep == " && " {
			return "true"
		}
		return "false"
	}
	parts := make([]string, len(operands))
	for i, operand := range operands {
		parts[i] = formatOperand(operand, cellName)
	}
	return strings.Join(parts, sep)
}
