package types

import (
	"github.com/mna/lethec/lang/ast"
)

// ComposeTypeEnum implements spec §4.8's binary-op result-type rule: the
// wider/higher-precision type wins; at equal width, signed loses to
// unsigned (spec: "signed < unsigned at equal width").
func ComposeTypeEnum(a, b Kind) Kind {
	rank := func(k Kind) int {
		switch k {
		case Bool:
			return 0
		case I8, U8, Char:
			return 1
		case I16, U16:
			return 2
		case I32, U32:
			return 3
		case I64, U64:
			return 4
		case F32:
			return 5
		case F64:
			return 6
		default:
			return -1
		}
	}
	ra, rb := rank(a), rank(b)
	if ra < 0 || rb < 0 {
		if a == String || b == String {
			return String
		}
		return a
	}
	wide, narrow := a, b
	if rb > ra {
		wide, narrow = b, a
	}
	isUnsigned := func(k Kind) bool {
		return k == U8 || k == U16 || k == U32 || k == U64
	}
	if ra == rb && (isUnsigned(a) || isUnsigned(b)) {
		if isUnsigned(a) {
			return a
		}
		return b
	}
	_ = narrow
	return wide
}

// FoldConst performs one bottom-up constant-folding pass over root,
// folding binary/unary operations on literal operands into a single
// KLiteralExpr node (spec §4.8). It returns true if anything changed,
// so the codegen driver's FoldConst phase (spec §4.9 step 2) can call it
// in a loop "until stable".
func FoldConst(root *ast.Node) bool {
	changed := false
	var walk func(n *ast.Node)
	walk = func(n *ast.Node) {
		if n == nil {
			return
		}
		for _, c := range n.Nodes {
			walk(c)
		}
		switch n.Kind {
		case ast.KBinOpExpr:
			if foldBinOp(n) {
				changed = true
			}
		case ast.KUnaryOpExpr:
			if foldUnaryOp(n) {
				changed = true
			}
		case ast.KCondExpr:
			if foldCond(n) {
				changed = true
			}
		}
	}
	walk(root)
	return changed
}

func isConstLiteral(n *ast.Node) bool { return n != nil && n.Kind == ast.KLiteralExpr }

// foldBinOp folds n (a KBinOpExpr with two KLiteralExpr children) into a
// single literal node in place, preserving n's location. The operator
// spelling is carried in n.Text (set by the parser), per spec's
// operator-token-driven design.
func foldBinOp(n *ast.Node) bool {
	if len(n.Nodes) != 2 {
		return false
	}
	lhs, rhs := n.Nodes[0], n.Nodes[1]
	if !isConstLiteral(lhs) || !isConstLiteral(rhs) {
		return false
	}

	// String concatenation/comparison use the Extra=="string" sentinel set
	// by the parser on string literal nodes (spec §4.8).
	if lhs.Extra == "string" || rhs.Extra == "string" {
		return foldStringBinOp(n, lhs, rhs)
	}

	isFloat := lhs.IsFloat || rhs.IsFloat
	var resI int64
	var resF float64
	var resIsFloat bool
	var resIsBool bool

	switch n.Text {
	case "+", "-", "*", "/", "%", "&", "|", "^", "<<", ">>":
		if isFloat && (n.Text == "&" || n.Text == "|" || n.Text == "^" || n.Text == "<<" || n.Text == ">>" || n.Text == "%") {
			return false // bitwise/mod ops are integer-only; leave for a type error later
		}
		if isFloat {
			a, b := asFloat(lhs), asFloat(rhs)
			switch n.Text {
			case "+":
				resF = a + b
			case "-":
				resF = a - b
			case "*":
				resF = a * b
			case "/":
				if b == 0 {
					return false // division by zero is left unfolded; nothing here reports it
				}
				resF = a / b
			}
			resF = flushDenormal(resF)
			resIsFloat = true
		} else {
			a, b := lhs.NumInt, rhs.NumInt
			switch n.Text {
			case "+":
				resI = a + b
			case "-":
				resI = a - b
			case "*":
				resI = a * b
			case "/":
				if b == 0 {
					return false
				}
				resI = a / b
			case "%":
				if b == 0 {
					return false
				}
				resI = a % b
			case "&":
				resI = a & b
			case "|":
				resI = a | b
			case "^":
				resI = a ^ b
			case "<<":
				resI = a << uint(b)
			case ">>":
				resI = a >> uint(b)
			}
		}
	case "==", "!=", "<", "<=", ">", ">=":
		resIsBool = true
		if isFloat {
			a, b := asFloat(lhs), asFloat(rhs)
			resI = boolToInt(compareFloat(n.Text, a, b))
		} else {
			a, b := lhs.NumInt, rhs.NumInt
			resI = boolToInt(compareInt(n.Text, a, b))
		}
	case "&&", "||":
		resIsBool = true
		a, b := lhs.NumInt != 0, rhs.NumInt != 0
		if n.Text == "&&" {
			resI = boolToInt(a && b)
		} else {
			resI = boolToInt(a || b)
		}
	default:
		return false
	}

	n.Kind = ast.KLiteralExpr
	n.Nodes = nil
	n.IsFloat = resIsFloat
	n.NumInt = resI
	n.NumFloat = resF
	if resIsBool {
		n.Extra = "bool"
	} else {
		n.Extra = nil
	}
	n.Text = ""
	return true
}

func foldStringBinOp(n *ast.Node, lhs, rhs *ast.Node) bool {
	if lhs.Extra != "string" || rhs.Extra != "string" {
		return false
	}
	switch n.Text {
	case "+":
		n.Kind = ast.KLiteralExpr
		n.Nodes = nil
		n.Text = lhs.Text + rhs.Text
		n.Extra = "string"
		return true
	case "==", "!=":
		eq := lhs.Text == rhs.Text
		if n.Text == "!=" {
			eq = !eq
		}
		n.Kind = ast.KLiteralExpr
		n.Nodes = nil
		n.NumInt = boolToInt(eq)
		n.Text = ""
		n.Extra = "bool"
		return true
	}
	return false
}

func foldUnaryOp(n *ast.Node) bool {
	if len(n.Nodes) != 1 {
		return false
	}
	operand := n.Nodes[0]
	if !isConstLiteral(operand) {
		return false
	}
	switch n.Text {
	case "-":
		if operand.IsFloat {
			operand.NumFloat = flushDenormal(-operand.NumFloat)
		} else {
			operand.NumInt = -operand.NumInt
		}
	case "+":
		// no-op
	case "!":
		operand.NumInt = boolToInt(operand.NumInt == 0)
		operand.Extra = "bool"
	case "~":
		operand.NumInt = ^operand.NumInt
	default:
		return false
	}
	*n = *operand
	return true
}

func foldCond(n *ast.Node) bool {
	if len(n.Nodes) != 3 {
		return false
	}
	cond := n.Nodes[0]
	if !isConstLiteral(cond) {
		return false
	}
	var chosen *ast.Node
	if cond.NumInt != 0 {
		chosen = n.Nodes[1]
	} else {
		chosen = n.Nodes[2]
	}
	if !isConstLiteral(chosen) {
		return false
	}
	*n = *chosen
	return true
}

func asFloat(n *ast.Node) float64 {
	if n.IsFloat {
		return n.NumFloat
	}
	return float64(n.NumInt)
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func compareFloat(op string, a, b float64) bool {
	switch op {
	case "==":
		return a == b
	case "!=":
		return a != b
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	case ">=":
		return a >= b
	}
	return false
}

func compareInt(op string, a, b int64) bool {
	switch op {
	case "==":
		return a == b
	case "!=":
		return a != b
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	case ">=":
		return a >= b
	}
	return false
}

// flushDenormal zeroes subnormal results, per spec §4.3 ("values that
// become denormal floats are flushed to zero").
func flushDenormal(f float64) float64 {
	if f != 0 && f > -2.2250738585072014e-308 && f < 2.2250738585072014e-308 {
		return 0
	}
	return f
}
