package compiler

import (
	"github.com/mna/lethec/lang/ast"
	"github.com/mna/lethec/lang/diag"
	"github.com/mna/lethec/lang/types"
)

// genExpr emits code that leaves exactly one value on the operand stack.
func (fc *fcomp) genExpr(n *ast.Node) {
	if n == nil {
		fc.emit(Instr{Op: NIL})
		return
	}
	switch n.Kind {
	case ast.KLiteralExpr:
		fc.genLiteral(n)
	case ast.KIdentExpr:
		fc.genIdent(n)
	case ast.KBinOpExpr:
		fc.genBinOp(n)
	case ast.KUnaryOpExpr:
		fc.genUnaryOp(n)
	case ast.KAssignExpr:
		fc.genAssign(n)
	case ast.KCallExpr:
		fc.genCall(n)
	case ast.KIndexExpr:
		fc.genExpr(n.Nodes[0])
		fc.genExpr(n.Nodes[1])
		fc.emit(Instr{Op: INDEX})
	case ast.KDotExpr:
		fc.genDot(n, false)
	case ast.KScopeExpr:
		fc.genScopeExpr(n)
	case ast.KCastExpr:
		fc.genExpr(n.Nodes[len(n.Nodes)-1])
		fc.emit(Instr{Op: CAST, Arg: fc.typeArg(n)})
	case ast.KSizeofExpr, ast.KTypeidExpr, ast.KOffsetofExpr:
		fc.genMetaExpr(n)
	case ast.KInitListExpr:
		fc.genInitList(n)
	case ast.KDesignator:
		fc.genExpr(n.Nodes[0])
	case ast.KTemplateInstanceExpr:
		fc.genTemplateRef(n)
	case ast.KCondExpr:
		fc.genCond(n)
	default:
		fc.emit(Instr{Op: NIL})
	}
}

func (fc *fcomp) genLiteral(n *ast.Node) {
	switch n.Extra {
	case "null":
		fc.emit(Instr{Op: NIL})
	case "string":
		fc.emit(Instr{Op: CICONST, Arg: fc.d.Prog.Constant(n.Text)})
	case "char":
		fc.emit(Instr{Op: CICONST, Arg: fc.d.Prog.Constant(n.NumInt)})
	case "name":
		fc.emit(Instr{Op: CICONST, Arg: fc.d.Prog.Name(n.Text)})
	case "bool":
		fc.emit(Instr{Op: CICONST, Arg: fc.d.Prog.Constant(n.NumInt != 0)})
	default:
		if n.IsFloat {
			fc.emit(Instr{Op: CICONST, Arg: fc.d.Prog.Constant(n.NumFloat)})
		} else {
			fc.emit(Instr{Op: CICONST, Arg: fc.d.Prog.Constant(n.NumInt)})
		}
	}
}

func (fc *fcomp) genIdent(n *ast.Node) {
	if fc.thisNode != nil && n.Target == fc.thisNode {
		fc.emit(Instr{Op: LOADLOCAL, Arg: fc.thisIdx})
		return
	}
	if idx, ok := fc.localIdx[n.Target]; ok {
		fc.emit(Instr{Op: LOADLOCAL, Arg: idx})
		return
	}
	if idx, ok := fc.d.globalIndex[n.Target]; ok {
		fc.emit(Instr{Op: LOADGLOBAL, Arg: idx})
		return
	}
	if n.Target != nil && n.Target.Kind == ast.KFuncDecl {
		callee := fc.d.compileFunc(n.Target)
		fc.emit(Instr{Op: CICONST, Arg: fc.d.Prog.Constant(callee)})
		return
	}
	if n.Target != nil && n.Target.Kind == ast.KEnumItem {
		fc.emit(Instr{Op: CICONST, Arg: fc.d.Prog.Constant(n.Target.NumInt)})
		return
	}
	fc.emit(Instr{Op: NIL})
}

func (fc *fcomp) genBinOp(n *ast.Node) {
	switch n.Text {
	case "&&":
		fc.genExpr(n.Nodes[0])
		fc.emit(Instr{Op: DUP})
		jf := fc.emit(Instr{Op: JMPF})
		fc.emit(Instr{Op: POP})
		fc.genExpr(n.Nodes[1])
		fc.patch(jf, fc.here())
		return
	case "||":
		fc.genExpr(n.Nodes[0])
		fc.emit(Instr{Op: DUP})
		jt := fc.emit(Instr{Op: JMPT})
		fc.emit(Instr{Op: POP})
		fc.genExpr(n.Nodes[1])
		fc.patch(jt, fc.here())
		return
	}
	fc.genExpr(n.Nodes[0])
	fc.genExpr(n.Nodes[1])
	op, ok := binOpcodes[n.Text]
	if !ok {
		fc.d.Sink.Addf(diag.Codegen, n.Loc, "unsupported binary operator %q", n.Text)
		op = NOP
	}
	fc.emit(Instr{Op: op})
}

func (fc *fcomp) genUnaryOp(n *ast.Node) {
	switch n.Text {
	case "+":
		fc.genExpr(n.Nodes[0])
	case "-":
		fc.genExpr(n.Nodes[0])
		fc.emit(Instr{Op: NEG})
	case "!":
		fc.genExpr(n.Nodes[0])
		fc.emit(Instr{Op: LNOT})
	case "~":
		fc.genExpr(n.Nodes[0])
		fc.emit(Instr{Op: BNOT})
	case "*":
		fc.genExpr(n.Nodes[0])
	case "&":
		fc.genAddrOf(n.Nodes[0])
	case "++":
		fc.genIncDec(n.Nodes[0], PREINC)
	case "--":
		fc.genIncDec(n.Nodes[0], PREDEC)
	case "post++":
		fc.genIncDec(n.Nodes[0], POSTINC)
	case "post--":
		fc.genIncDec(n.Nodes[0], POSTDEC)
	default:
		fc.genExpr(n.Nodes[0])
	}
}

// genIncDec handles both prefix and postfix increment/decrement on a
// local, global or field lvalue (spec §4.5), emitting a load, the
// pre/post opcode, and the matching store.
func (fc *fcomp) genIncDec(target *ast.Node, op Opcode) {
	switch {
	case fc.thisNode != nil && target.Target == fc.thisNode:
		fc.emit(Instr{Op: LOADLOCAL, Arg: fc.thisIdx})
		fc.emit(Instr{Op: op})
		fc.emit(Instr{Op: STORELOCAL, Arg: fc.thisIdx})
	case target.Kind == ast.KIdentExpr:
		if idx, ok := fc.localIdx[target.Target]; ok {
			fc.emit(Instr{Op: LOADLOCAL, Arg: idx})
			fc.emit(Instr{Op: op})
			fc.emit(Instr{Op: STORELOCAL, Arg: idx})
			return
		}
		if idx, ok := fc.d.globalIndex[target.Target]; ok {
			fc.emit(Instr{Op: LOADGLOBAL, Arg: idx})
			fc.emit(Instr{Op: op})
			fc.emit(Instr{Op: STOREGLOBAL, Arg: idx})
			return
		}
	case target.Kind == ast.KDotExpr:
		fc.genExpr(target.Nodes[0])
		fc.emit(Instr{Op: DUP})
		fc.emit(Instr{Op: GETFIELD, Arg: fc.d.Prog.Name(target.Text)})
		fc.emit(Instr{Op: op})
		fc.emit(Instr{Op: SETFIELD, Arg: fc.d.Prog.Name(target.Text)})
	case target.Kind == ast.KIndexExpr:
		fc.genExpr(target.Nodes[0])
		fc.genExpr(target.Nodes[1])
		fc.emit(Instr{Op: DUP2})
		fc.emit(Instr{Op: INDEX})
		fc.emit(Instr{Op: op})
		fc.emit(Instr{Op: SETINDEX})
	default:
		fc.genExpr(target)
		fc.emit(Instr{Op: op})
	}
}

func (fc *fcomp) genAddrOf(target *ast.Node) {
	switch target.Kind {
	case ast.KIdentExpr:
		if idx, ok := fc.localIdx[target.Target]; ok {
			fc.emit(Instr{Op: LOADLOCALREF, Arg: idx})
			return
		}
		if idx, ok := fc.d.globalIndex[target.Target]; ok {
			fc.emit(Instr{Op: LOADGLOBALREF, Arg: idx})
			return
		}
	case ast.KDotExpr:
		fc.genExpr(target.Nodes[0])
		fc.emit(Instr{Op: GETFIELDREF, Arg: fc.d.Prog.Name(target.Text)})
		return
	case ast.KIndexExpr:
		fc.genExpr(target.Nodes[0])
		fc.genExpr(target.Nodes[1])
		fc.emit(Instr{Op: INDEXREF})
		return
	}
	fc.genExpr(target)
}

// genAssign emits both plain '=' (a store) and compound assignment
// ('+=', etc, spec §4.5), which reads the lvalue, combines it with the
// rhs using the corresponding binary opcode, and stores back.
func (fc *fcomp) genAssign(n *ast.Node) {
	lhs, rhs := n.Nodes[0], n.Nodes[1]
	if n.Text == "=" {
		fc.genExpr(rhs)
		fc.emit(Instr{Op: DUP})
		fc.storeTo(lhs)
		return
	}
	opText := n.Text[:len(n.Text)-1] // strip trailing '='
	op, ok := binOpcodes[opText]
	if !ok {
		op = ADD
	}
	switch lhs.Kind {
	case ast.KIdentExpr:
		fc.genExpr(lhs)
		fc.genExpr(rhs)
		fc.emit(Instr{Op: op})
		fc.emit(Instr{Op: DUP})
		fc.storeTo(lhs)
	case ast.KDotExpr:
		fc.genExpr(lhs.Nodes[0])
		fc.emit(Instr{Op: DUP})
		fc.emit(Instr{Op: GETFIELD, Arg: fc.d.Prog.Name(lhs.Text)})
		fc.genExpr(rhs)
		fc.emit(Instr{Op: op})
		fc.emit(Instr{Op: DUP})
		fc.emit(Instr{Op: SETFIELD, Arg: fc.d.Prog.Name(lhs.Text)})
	case ast.KIndexExpr:
		fc.genExpr(lhs.Nodes[0])
		fc.genExpr(lhs.Nodes[1])
		fc.emit(Instr{Op: DUP2})
		fc.emit(Instr{Op: INDEX})
		fc.genExpr(rhs)
		fc.emit(Instr{Op: op})
		fc.emit(Instr{Op: DUP})
		fc.emit(Instr{Op: SETINDEX})
	default:
		fc.genExpr(rhs)
	}
}

// storeTo pops the value left by the caller (after a DUP, so a copy
// remains as the expression's result) into lhs.
func (fc *fcomp) storeTo(lhs *ast.Node) {
	switch {
	case fc.thisNode != nil && lhs.Target == fc.thisNode:
		fc.emit(Instr{Op: STORELOCAL, Arg: fc.thisIdx})
	case lhs.Kind == ast.KIdentExpr:
		if idx, ok := fc.localIdx[lhs.Target]; ok {
			fc.emit(Instr{Op: STORELOCAL, Arg: idx})
			return
		}
		if idx, ok := fc.d.globalIndex[lhs.Target]; ok {
			fc.emit(Instr{Op: STOREGLOBAL, Arg: idx})
			return
		}
		fc.emit(Instr{Op: POP})
	case lhs.Kind == ast.KDotExpr:
		fc.genExpr(lhs.Nodes[0])
		fc.emit(Instr{Op: SETFIELD, Arg: fc.d.Prog.Name(lhs.Text)})
	case lhs.Kind == ast.KIndexExpr:
		fc.genExpr(lhs.Nodes[0])
		fc.genExpr(lhs.Nodes[1])
		fc.emit(Instr{Op: SETINDEX})
	default:
		fc.emit(Instr{Op: POP})
	}
}

// genCall handles ordinary calls, 'new T(args)' (Extra=="new") and
// virtual dispatch through a.b(...) where b resolves to a QVirtual member.
func (fc *fcomp) genCall(n *ast.Node) {
	if n.Extra == "new" {
		fc.genNew(n)
		return
	}
	callee := n.Nodes[0]
	args := n.Nodes[1:]
	if dot, ok := calleeDot(callee); ok && dot.Target != nil && dot.Target.Qualifiers.Has(ast.QVirtual) {
		fc.genExpr(dot.Nodes[0]) // receiver
		for _, a := range args {
			fc.genExpr(a)
		}
		slot := fc.d.vtableSlot(dot.Target)
		fc.emit(Instr{Op: CALLVIRT, Arg: int32(slot)})
		return
	}
	if dot, ok := calleeDot(callee); ok && dot.Target != nil && dot.Target.Kind == ast.KFuncDecl {
		fc.genExpr(dot.Nodes[0]) // receiver, becomes implicit 'this' argument
		for _, a := range args {
			fc.genExpr(a)
		}
		fn := fc.d.compileFunc(dot.Target)
		fc.emit(Instr{Op: CALL, Arg: fc.d.Prog.Constant(fn)})
		return
	}
	fc.genExpr(callee)
	for _, a := range args {
		fc.genExpr(a)
	}
	fc.emit(Instr{Op: CALL, Arg: int32(len(args))})
}

func calleeDot(n *ast.Node) (*ast.Node, bool) {
	if n.Kind == ast.KDotExpr {
		return n, true
	}
	return nil, false
}

func (fc *fcomp) genNew(n *ast.Node) {
	qt := fc.typeOf(n.Nodes[0])
	fc.emit(Instr{Op: NEWOBJ, Arg: fc.d.Prog.Constant(qt)})
	if ctor := fc.d.lookupCtor(qt.Ref); ctor != nil {
		fc.emit(Instr{Op: DUP})
		for _, a := range n.Nodes[1:] {
			fc.genExpr(a)
		}
		fc.emit(Instr{Op: CALL, Arg: fc.d.Prog.Constant(ctor)})
		fc.emit(Instr{Op: POP})
	}
}

func (fc *fcomp) genDot(n *ast.Node, ref bool) {
	fc.genExpr(n.Nodes[0])
	if n.Target == nil {
		// resolved against an enum member: the constant offset IS the value.
		fc.emit(Instr{Op: POP})
		fc.emit(Instr{Op: CICONST, Arg: fc.d.Prog.Constant(n.NumInt)})
		return
	}
	if ref {
		fc.emit(Instr{Op: GETFIELDREF, Arg: fc.d.Prog.Name(n.Text)})
	} else {
		fc.emit(Instr{Op: GETFIELD, Arg: fc.d.Prog.Name(n.Text)})
	}
}

func (fc *fcomp) genScopeExpr(n *ast.Node) {
	if n.Target != nil {
		switch n.Target.Kind {
		case ast.KEnumItem:
			fc.emit(Instr{Op: CICONST, Arg: fc.d.Prog.Constant(n.Target.NumInt)})
			return
		case ast.KFuncDecl:
			fn := fc.d.compileFunc(n.Target)
			fc.emit(Instr{Op: CICONST, Arg: fc.d.Prog.Constant(fn)})
			return
		}
		if idx, ok := fc.d.globalIndex[n.Target]; ok {
			fc.emit(Instr{Op: LOADGLOBAL, Arg: idx})
			return
		}
	}
	fc.emit(Instr{Op: NIL})
}

func (fc *fcomp) genMetaExpr(n *ast.Node) {
	// sizeof/typeid/offsetof are constant-folded by lang/types.FoldConst
	// once their operand's type is known; anything still unfolded at
	// codegen time (spec §4.6 unresolved residue) degrades to zero rather
	// than failing the whole function.
	if n.Flags.Has(ast.FResolved) {
		fc.emit(Instr{Op: CICONST, Arg: fc.d.Prog.Constant(n.NumInt)})
		return
	}
	fc.emit(Instr{Op: CICONST, Arg: fc.d.Prog.Constant(int64(0))})
}

func (fc *fcomp) genInitList(n *ast.Node) {
	for _, c := range n.Nodes {
		fc.genExpr(c)
	}
	fc.emit(Instr{Op: MAKEARRAY, Arg: int32(len(n.Nodes))})
}

func (fc *fcomp) genTemplateRef(n *ast.Node) {
	if n.Target != nil && n.Target.Kind == ast.KFuncDecl {
		fn := fc.d.compileFunc(n.Target)
		fc.emit(Instr{Op: CICONST, Arg: fc.d.Prog.Constant(fn)})
		return
	}
	fc.emit(Instr{Op: NIL})
}

func (fc *fcomp) genCond(n *ast.Node) {
	fc.genExpr(n.Nodes[0])
	jf := fc.emit(Instr{Op: JMPF})
	fc.genExpr(n.Nodes[1])
	jend := fc.emit(Instr{Op: JMP})
	fc.patch(jf, fc.here())
	fc.genExpr(n.Nodes[2])
	fc.patch(jend, fc.here())
}

func (fc *fcomp) typeOf(n *ast.Node) types.QDataType {
	qt, _ := n.ResolvedType.(types.QDataType)
	return qt
}

func (fc *fcomp) typeArg(n *ast.Node) int32 {
	return fc.d.Prog.Constant(fc.typeOf(n.Nodes[0]))
}
