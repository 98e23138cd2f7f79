package compiler

import (
	"github.com/mna/lethec/lang/ast"
	"github.com/mna/lethec/lang/diag"
	"github.com/mna/lethec/lang/parser"
	"github.com/mna/lethec/lang/scope"
	"github.com/mna/lethec/lang/types"
)

// Driver runs the codegen phases of spec §4.9 over one resolved,
// instantiated AST, producing a CompiledProgram.
//
// Unlike the teacher's two-pass "build a CFG of blocks, then linearize"
// compiler (lang/compiler/compiler.go's fcomp.function), this driver emits
// instructions directly into a flat Funcode.Code slice with a backpatch
// list for forward jumps: Lethe exposes arbitrary 'goto'/labels (spec
// §4.5), so the natural unit of a basic block is the label table rather
// than the teacher's fall-through/jmp/cjmp block graph (which has no
// labels to key blocks by). Backpatching is the standard idiom for
// label-addressable bytecode and keeps the label/goto mapping direct.
type Driver struct {
	Prog *CompiledProgram
	Sink *diag.Sink
	Gen  *types.Gen

	funcIndex   map[*ast.Node]*Funcode
	globalIndex map[*ast.Node]int32
	composites  map[*types.DataType]*compositeFns
	vtables     map[*ast.Node]*Vtable // keyed by owning KClassDecl
}

// NewDriver creates a Driver that will populate prog, reporting
// diagnostics to sink and materializing types through gen.
func NewDriver(prog *CompiledProgram, sink *diag.Sink, gen *types.Gen) *Driver {
	return &Driver{
		Prog:        prog,
		Sink:        sink,
		Gen:         gen,
		funcIndex:   make(map[*ast.Node]*Funcode),
		globalIndex: make(map[*ast.Node]int32),
	}
}

// Run executes every codegen phase over root in spec §4.9's order.
func (d *Driver) Run(root *ast.Node) {
	d.beginCodegen()
	d.foldConstLoop(root)
	d.typeGen(root)
	d.collectGlobals(root)
	d.codeGenComposite(root)
	d.codeGenGlobalCtor(root)
	d.codeGen(root)
	d.vtblGen(root)
	d.optimize()
	d.fixupVtbl()
}

// BeginCodegen (spec §4.9 step 1): the elementary types and the native
// string-property scope (s.length) are seeded by types.NewPool itself, so
// there is nothing left to do here once the pool has been handed to
// NewCompiledProgram.
func (d *Driver) beginCodegen() {}

// FoldConst (spec §4.9 step 2): exhaust constant folding before type
// generation, since array dimensions and enum values may depend on it.
func (d *Driver) foldConstLoop(root *ast.Node) {
	for types.FoldConst(root) {
	}
}

// TypeGenDef/TypeGen (spec §4.9 step 3).
func (d *Driver) typeGen(root *ast.Node) {
	d.Gen.Run(root)
}

// codeGen walks every top-level and class-member function, compiling each
// to a Funcode (spec §4.9 step 6 "CodeGen").
func (d *Driver) codeGen(root *ast.Node) {
	var walk func(n *ast.Node)
	walk = func(n *ast.Node) {
		if n == nil || n.Flags.Has(ast.FSkipCodegen) {
			return
		}
		if n.Kind == ast.KFuncDecl {
			d.compileFunc(n)
		}
		for _, c := range n.Nodes {
			walk(c)
		}
	}
	walk(root)
}

// collectGlobals assigns a stable program-wide slot to every file-scope
// (and namespace-scope) variable before any function body is compiled, so
// forward references across functions resolve (spec §5 "forward
// references within a scope work").
func (d *Driver) collectGlobals(root *ast.Node) {
	var walk func(n *ast.Node, topLevel bool)
	walk = func(n *ast.Node, topLevel bool) {
		if n == nil {
			return
		}
		if topLevel && n.Kind == ast.KVarDecl && len(n.Nodes) > 0 {
			for _, decl := range n.Nodes[1:] {
				if decl.Kind != ast.KVarDecl {
					continue
				}
				d.addGlobal(decl)
			}
		}
		childTopLevel := topLevel && (n.Kind == ast.KProgram || n.Kind == ast.KNamespaceDecl)
		for _, c := range n.Nodes {
			walk(c, childTopLevel)
		}
	}
	walk(root, true)
}

func (d *Driver) addGlobal(decl *ast.Node) {
	if _, ok := d.globalIndex[decl]; ok {
		return
	}
	qt, _ := decl.ResolvedType.(types.QDataType)
	idx := int32(len(d.Prog.Globals))
	d.Prog.Globals = append(d.Prog.Globals, Global{Name: decl.Text, Type: qt, Node: decl})
	d.globalIndex[decl] = idx
}

// fcomp holds per-function codegen state.
type fcomp struct {
	d    *Driver
	fn   *Funcode
	code []Instr

	localIdx map[*ast.Node]int32
	thisIdx  int32
	thisNode *ast.Node

	labels       map[string]int
	pendingGotos []pendingGoto

	loops []loopCtx
}

// enclosingClassDecl walks n's Parent chain for the nearest KClassDecl,
// mirroring lang/resolver's own helper of the same purpose.
func enclosingClassDecl(n *ast.Node) *ast.Node {
	for cur := n.Parent; cur != nil; cur = cur.Parent {
		if cur.Kind == ast.KClassDecl {
			return cur
		}
	}
	return nil
}

type pendingGoto struct {
	pc    int
	label string
}

type loopCtx struct {
	breakPatches      []int
	continueTarget    int
	continueTargetSet bool
	continuePatches   []int // for do-while, where the continue target isn't known yet
}

func (d *Driver) compileFunc(n *ast.Node) *Funcode {
	if fn, ok := d.funcIndex[n]; ok {
		return fn
	}
	ret, _ := n.ResolvedType.(types.QDataType)
	if fp := ret.Ref; fp != nil && (fp.Kind == types.FuncPtr || fp.Kind == types.Delegate) {
		ret = fp.ElemType
	}
	fn := &Funcode{Name: n.Text, Pos: n.Loc, RetType: ret, VtableIndex: -1}
	d.funcIndex[n] = fn
	d.Prog.Functions = append(d.Prog.Functions, fn)

	fc := &fcomp{d: d, fn: fn, localIdx: make(map[*ast.Node]int32), labels: make(map[string]int), thisIdx: -1}

	if cls := enclosingClassDecl(n); cls != nil && !n.Qualifiers.Has(ast.QStatic) {
		fc.thisNode = cls
		fc.thisIdx = int32(len(fn.Locals))
		dt, _ := d.Gen.EnsureComposite(cls)
		fn.Locals = append(fn.Locals, LocalBinding{Name: "this", Offset: fc.thisIdx, Type: d.Prog.Types.PtrType(types.StrongPtr, types.QDataType{Ref: dt})})
		fn.NumParams++
	}

	var body *ast.Node
	for _, c := range n.Nodes {
		switch c.Kind {
		case ast.KParam:
			fc.allocLocal(c, qdataType(c))
			fn.NumParams++
		case ast.KBlock:
			body = c
		}
	}
	if body != nil {
		fc.genStmt(body)
	}
	fc.emit(Instr{Op: NIL})
	fc.emit(Instr{Op: RETURN})
	fc.resolveGotos()
	fn.Code = fc.code
	fn.MaxStack = fc.computeMaxStack()
	return fn
}

func qdataType(n *ast.Node) types.QDataType {
	qt, _ := n.ResolvedType.(types.QDataType)
	return qt
}

func (fc *fcomp) allocLocal(n *ast.Node, qt types.QDataType) int32 {
	idx := int32(len(fc.fn.Locals))
	fc.fn.Locals = append(fc.fn.Locals, LocalBinding{Name: n.Text, Offset: idx, Type: qt})
	fc.localIdx[n] = idx
	return idx
}

func (fc *fcomp) emit(in Instr) int {
	fc.code = append(fc.code, in)
	return len(fc.code) - 1
}

func (fc *fcomp) here() int { return len(fc.code) }

func (fc *fcomp) patch(pc int, target int) { fc.code[pc].Arg = int32(target) }

func (fc *fcomp) resolveGotos() {
	for _, g := range fc.pendingGotos {
		if target, ok := fc.labels[g.label]; ok {
			fc.code[g.pc].Arg = int32(target)
		} else {
			fc.d.Sink.Addf(diag.Codegen, fc.fn.Pos, "undefined label %q", g.label)
		}
	}
}

// computeMaxStack walks the emitted instructions linearly, summing
// per-instruction stack effect; this is a conservative approximation (it
// does not verify per-block depth convergence the way the teacher's
// linearize pass does) adequate for allocating the VM's operand stack.
func (fc *fcomp) computeMaxStack() int {
	depth, max := 0, 0
	for _, in := range fc.code {
		depth += stackEffect(in)
		if depth > max {
			max = depth
		}
		if depth < 0 {
			depth = 0
		}
	}
	return max + 1
}

// --- statements ---

func (fc *fcomp) genStmt(n *ast.Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case ast.KBlock:
		for _, c := range n.Nodes {
			fc.genStmt(c)
		}
		fc.runDefers(n)
	case ast.KExprStmt:
		fc.genExpr(n.Nodes[0])
		fc.emit(Instr{Op: POP})
	case ast.KVarDecl:
		fc.genLocalVarDecl(n)
	case ast.KIfStmt:
		fc.genIf(n)
	case ast.KWhileStmt:
		fc.genWhile(n)
	case ast.KDoStmt:
		fc.genDo(n)
	case ast.KForStmt:
		fc.genFor(n)
	case ast.KForInStmt:
		fc.genForIn(n)
	case ast.KSwitchStmt:
		fc.genSwitch(n)
	case ast.KBreakStmt:
		fc.genBreak(n)
	case ast.KContinueStmt:
		fc.genContinue(n)
	case ast.KReturnStmt:
		fc.genReturn(n)
	case ast.KGotoStmt:
		pc := fc.emit(Instr{Op: JMP})
		fc.pendingGotos = append(fc.pendingGotos, pendingGoto{pc: pc, label: n.Text})
	case ast.KLabelStmt:
		fc.labels[n.Text] = fc.here()
	case ast.KDeferStmt:
		// deferred blocks are run by runDefers at the owning block's exit
		// (spec GLOSSARY "scope-bound destruction"); nothing to emit here.
	case ast.KTypedefDecl, ast.KUsingDecl, ast.KStaticAssert:
		// compile-time only, no codegen.
	default:
		fc.genExpr(n)
		fc.emit(Instr{Op: POP})
	}
}

func (fc *fcomp) runDefers(block *ast.Node) {
	sc, _ := block.ScopeRef.(*scope.Scope)
	if sc == nil {
		return
	}
	for i := len(sc.Deferred) - 1; i >= 0; i-- {
		defr := sc.Deferred[i]
		if len(defr.Nodes) > 0 {
			fc.genStmt(defr.Nodes[0])
		}
	}
}

func (fc *fcomp) genLocalVarDecl(list *ast.Node) {
	if len(list.Nodes) == 0 {
		return
	}
	for _, decl := range list.Nodes[1:] {
		if decl.Kind != ast.KVarDecl {
			continue
		}
		if alias, ok := decl.Extra.(string); ok {
			// relocated state variable: storage lives on the enclosing class,
			// this declarator is a typedef-like alias with no storage of its
			// own (spec §4.5 state-variable relocation).
			_ = alias
			continue
		}
		qt := qdataType(decl)
		fc.allocLocal(decl, qt)
		if init := declInit(decl); init != nil {
			fc.genExpr(init)
			fc.emit(Instr{Op: STORELOCAL, Arg: fc.localIdx[decl]})
		}
	}
}

// declInit returns a KVarDecl declarator's initializer expression, if any
// (the last child that isn't an array-suffix KTypeNode, per
// lang/parser/decl.go's parseDeclarator shape).
func declInit(decl *ast.Node) *ast.Node {
	for i := len(decl.Nodes) - 1; i >= 0; i-- {
		c := decl.Nodes[i]
		if c.Kind == ast.KTypeNode && c.Text == "[]" {
			continue
		}
		return c
	}
	return nil
}

func (fc *fcomp) genIf(n *ast.Node) {
	hasDecl, hasElse := parser.IfLayout(n)
	idx := 0
	if hasDecl {
		fc.genStmt(n.Nodes[idx])
		idx++
	}
	fc.genExpr(n.Nodes[idx])
	idx++
	jf := fc.emit(Instr{Op: JMPF})
	fc.genStmt(n.Nodes[idx])
	idx++
	if hasElse {
		jend := fc.emit(Instr{Op: JMP})
		fc.patch(jf, fc.here())
		fc.genStmt(n.Nodes[idx])
		fc.patch(jend, fc.here())
	} else {
		fc.patch(jf, fc.here())
	}
}

func (fc *fcomp) genWhile(n *ast.Node) {
	start := fc.here()
	fc.genExpr(n.Nodes[0])
	jf := fc.emit(Instr{Op: JMPF})
	fc.loops = append(fc.loops, loopCtx{continueTarget: start, continueTargetSet: true})
	fc.genStmt(n.Nodes[1])
	fc.emitJmpTo(start)
	fc.patch(jf, fc.here())
	fc.popLoop()
}

func (fc *fcomp) genDo(n *ast.Node) {
	start := fc.here()
	fc.loops = append(fc.loops, loopCtx{})
	fc.genStmt(n.Nodes[0])
	contTarget := fc.here()
	fc.patchContinues(contTarget)
	fc.genExpr(n.Nodes[1])
	jt := fc.emit(Instr{Op: JMPT})
	fc.patch(jt, start)
	fc.popLoop()
}

func (fc *fcomp) genFor(n *ast.Node) {
	hasInit, hasCond, hasPost := parser.ForLayout(n)
	idx := 0
	if hasInit {
		fc.genStmt(n.Nodes[idx])
		idx++
	}
	start := fc.here()
	var jf int
	hasJf := false
	if hasCond {
		fc.genExpr(n.Nodes[idx])
		idx++
		jf = fc.emit(Instr{Op: JMPF})
		hasJf = true
	}
	bodyIdx := idx
	if hasPost {
		bodyIdx = idx + 1
	}
	fc.loops = append(fc.loops, loopCtx{})
	fc.genStmt(n.Nodes[bodyIdx])
	contTarget := fc.here()
	fc.patchContinues(contTarget)
	if hasPost {
		fc.genExpr(n.Nodes[idx])
		fc.emit(Instr{Op: POP})
	}
	fc.emitJmpTo(start)
	if hasJf {
		fc.patch(jf, fc.here())
	}
	fc.popLoop()
}

func (fc *fcomp) genForIn(n *ast.Node) {
	// Range-for is rewritten by the parser into a classic counted loop
	// shape [decl, bound, body] (spec §4.5 "for(auto x : n)").
	decl, bound, body := n.Nodes[0], n.Nodes[1], n.Nodes[2]
	fc.genStmt(decl)
	var declNode *ast.Node
	if decl.Kind == ast.KVarDecl && len(decl.Nodes) > 1 {
		declNode = decl.Nodes[1]
	}
	start := fc.here()
	if declNode != nil {
		fc.emit(Instr{Op: LOADLOCAL, Arg: fc.localIdx[declNode]})
	}
	fc.genExpr(bound)
	fc.emit(Instr{Op: LT})
	jf := fc.emit(Instr{Op: JMPF})
	fc.loops = append(fc.loops, loopCtx{})
	fc.genStmt(body)
	contTarget := fc.here()
	fc.patchContinues(contTarget)
	if declNode != nil {
		fc.emit(Instr{Op: LOADLOCAL, Arg: fc.localIdx[declNode]})
		fc.emit(Instr{Op: PREINC})
		fc.emit(Instr{Op: STORELOCAL, Arg: fc.localIdx[declNode]})
	}
	fc.emitJmpTo(start)
	fc.patch(jf, fc.here())
	fc.popLoop()
}

func (fc *fcomp) emitJmpTo(target int) {
	pc := fc.emit(Instr{Op: JMP})
	fc.patch(pc, target)
}

func (fc *fcomp) popLoop() {
	lc := fc.loops[len(fc.loops)-1]
	for _, pc := range lc.breakPatches {
		fc.patch(pc, fc.here())
	}
	fc.loops = fc.loops[:len(fc.loops)-1]
}

func (fc *fcomp) patchContinues(target int) {
	if len(fc.loops) == 0 {
		return
	}
	lc := &fc.loops[len(fc.loops)-1]
	for _, pc := range lc.continuePatches {
		fc.patch(pc, target)
	}
	lc.continuePatches = nil
	lc.continueTarget = target
	lc.continueTargetSet = true
}

func (fc *fcomp) genBreak(n *ast.Node) {
	if len(fc.loops) == 0 {
		return
	}
	pc := fc.emit(Instr{Op: JMP})
	lc := &fc.loops[len(fc.loops)-1]
	lc.breakPatches = append(lc.breakPatches, pc)
}

func (fc *fcomp) genContinue(n *ast.Node) {
	if len(fc.loops) == 0 {
		return
	}
	lc := &fc.loops[len(fc.loops)-1]
	pc := fc.emit(Instr{Op: JMP})
	if lc.continueTargetSet {
		fc.patch(pc, lc.continueTarget)
	} else {
		lc.continuePatches = append(lc.continuePatches, pc)
	}
}

// genSwitch emits both switch flavors (spec §4.5): classic fall-through,
// and 'switch break(e)' where each case auto-breaks unless overridden by a
// leading 'fallthrough'. Every case body is reached only through a small
// per-case "matched" trampoline that pops the subject once before falling
// into the shared body sequence; fall-through between adjacent bodies
// therefore never re-pops, since the subject is already gone by the time
// any body runs.
func (fc *fcomp) genSwitch(n *ast.Node) {
	fc.genExpr(n.Nodes[0])
	fc.loops = append(fc.loops, loopCtx{})

	cases := n.Nodes[1:]
	testJumps := make([]int, len(cases)) // JMPT pc for each non-default case, -1 for default
	defaultIdx := -1
	for i, cc := range cases {
		if isDefault, _ := parser.CaseLayout(cc); isDefault {
			defaultIdx = i
			testJumps[i] = -1
			continue
		}
		fc.emit(Instr{Op: DUP})
		fc.genExpr(cc.Nodes[0])
		fc.emit(Instr{Op: EQ})
		testJumps[i] = fc.emit(Instr{Op: JMPT})
	}
	noMatchJmp := fc.emit(Instr{Op: JMP})

	// trampolines: one per case, POP then fall into/jump to its body.
	trampolineAt := make([]int, len(cases))
	bodyOf := make([]int, len(cases))
	for i := range cases {
		trampolineAt[i] = fc.here()
		fc.emit(Instr{Op: POP})
		jmp := fc.emit(Instr{Op: JMP})
		bodyOf[i] = jmp
	}
	if defaultIdx >= 0 {
		fc.patch(noMatchJmp, trampolineAt[defaultIdx])
	}

	bodyStarts := make([]int, len(cases))
	for i, cc := range cases {
		bodyStarts[i] = fc.here()
		stmts := caseStmts(cc)
		for _, st := range stmts {
			fc.genStmt(st)
		}
		_, autoBreak := parser.CaseLayout(cc)
		if autoBreak {
			pc := fc.emit(Instr{Op: JMP})
			lc := &fc.loops[len(fc.loops)-1]
			lc.breakPatches = append(lc.breakPatches, pc)
		}
	}
	end := fc.here()

	for i, pc := range testJumps {
		if pc >= 0 {
			fc.patch(pc, trampolineAt[i])
		}
	}
	for i, jmp := range bodyOf {
		fc.patch(jmp, bodyStarts[i])
	}
	if defaultIdx < 0 {
		fc.patch(noMatchJmp, end)
	}
	fc.popLoop()
}

func caseStmts(cc *ast.Node) []*ast.Node {
	isDefault, _ := parser.CaseLayout(cc)
	if isDefault {
		return cc.Nodes
	}
	if len(cc.Nodes) == 0 {
		return nil
	}
	return cc.Nodes[1:]
}

func (fc *fcomp) genReturn(n *ast.Node) {
	if len(n.Nodes) > 0 {
		fc.genExpr(n.Nodes[0])
	} else {
		fc.emit(Instr{Op: NIL})
	}
	fc.emit(Instr{Op: RETURN})
}
