package compiler

import (
	"github.com/mna/lethec/lang/ast"
	"github.com/mna/lethec/lang/types"
)

// codeGenComposite gives every composite a constructor and a destructor
// (spec §4.9 CodeGenComposite): a user-declared one is compiled as is;
// otherwise one is synthesized. A synthesized constructor calls the base
// class's constructor first, then runs each member's initializer
// expression; a synthesized destructor releases strong/weak pointer
// members in reverse declaration order (spec §6 lifetime rules).
func (d *Driver) codeGenComposite(root *ast.Node) {
	var walk func(n *ast.Node)
	walk = func(n *ast.Node) {
		if n == nil {
			return
		}
		if n.Kind == ast.KClassDecl {
			d.ensureCtorDtor(n)
		}
		for _, c := range n.Nodes {
			walk(c)
		}
	}
	walk(root)
}

type compositeFns struct {
	ctor, dtor *Funcode
}

func (d *Driver) ensureCtorDtor(n *ast.Node) {
	dt, _ := d.Gen.EnsureComposite(n)
	if d.composites == nil {
		d.composites = make(map[*types.DataType]*compositeFns)
	}
	if _, ok := d.composites[dt]; ok {
		return
	}
	cf := &compositeFns{}
	if userCtor := findMethod(n, n.Text); userCtor != nil {
		cf.ctor = d.compileFunc(userCtor)
	} else {
		cf.ctor = d.synthCtor(n, dt)
	}
	if userDtor := findMethod(n, "~"+n.Text); userDtor != nil {
		cf.dtor = d.compileFunc(userDtor)
	} else {
		cf.dtor = d.synthDtor(n, dt)
	}
	d.composites[dt] = cf
}

func findMethod(classDecl *ast.Node, name string) *ast.Node {
	for _, c := range classDecl.Nodes {
		if c.Kind == ast.KFuncDecl && c.Text == name {
			return c
		}
	}
	return nil
}

// synthCtor builds a constructor that runs each field's declared
// initializer, in declaration order (spec §4.5 "synthesized empty
// constructors" supplement).
func (d *Driver) synthCtor(classDecl *ast.Node, dt *types.DataType) *Funcode {
	fn := &Funcode{Name: classDecl.Text, Pos: classDecl.Loc, NumParams: 1, VtableIndex: -1}
	d.Prog.Functions = append(d.Prog.Functions, fn)
	fc := &fcomp{d: d, fn: fn, localIdx: make(map[*ast.Node]int32), labels: make(map[string]int), thisIdx: 0, thisNode: classDecl}
	fn.Locals = append(fn.Locals, LocalBinding{Name: "this", Offset: 0, Type: d.Prog.Types.PtrType(types.StrongPtr, types.QDataType{Ref: dt})})

	if dt.Base != nil {
		if baseFns, ok := d.composites[dt.Base]; ok && baseFns.ctor != nil {
			fc.emit(Instr{Op: LOADLOCAL, Arg: 0})
			fc.emit(Instr{Op: CALL, Arg: d.Prog.Constant(baseFns.ctor)})
			fc.emit(Instr{Op: POP})
		}
	}
	for _, field := range classDecl.Nodes {
		if field.Kind != ast.KField || len(field.Nodes) == 0 {
			continue
		}
		init := declInit(field)
		if init == nil {
			continue
		}
		fc.emit(Instr{Op: LOADLOCAL, Arg: 0})
		fc.genExpr(init)
		fc.emit(Instr{Op: SETFIELD, Arg: d.Prog.Name(field.Text)})
	}
	fc.emit(Instr{Op: NIL})
	fc.emit(Instr{Op: RETURN})
	fn.Code = fc.code
	fn.MaxStack = fc.computeMaxStack()
	return fn
}

// synthDtor builds a destructor that releases every strong/weak pointer
// member in reverse declaration order (spec §6).
func (d *Driver) synthDtor(classDecl *ast.Node, dt *types.DataType) *Funcode {
	fn := &Funcode{Name: "~" + classDecl.Text, Pos: classDecl.Loc, NumParams: 1, VtableIndex: -1}
	d.Prog.Functions = append(d.Prog.Functions, fn)
	fc := &fcomp{d: d, fn: fn, localIdx: make(map[*ast.Node]int32), labels: make(map[string]int), thisIdx: 0, thisNode: classDecl}
	fn.Locals = append(fn.Locals, LocalBinding{Name: "this", Offset: 0, Type: d.Prog.Types.PtrType(types.StrongPtr, types.QDataType{Ref: dt})})

	for i := len(dt.Members) - 1; i >= 0; i-- {
		m := dt.Members[i]
		if m.Type.Ref == nil {
			continue
		}
		var op Opcode
		switch m.Type.Ref.Kind {
		case types.StrongPtr:
			op = RELEASE
		case types.WeakPtr:
			op = RELEASEWEAK
		default:
			continue
		}
		fc.emit(Instr{Op: LOADLOCAL, Arg: 0})
		fc.emit(Instr{Op: GETFIELD, Arg: d.Prog.Name(m.Name)})
		fc.emit(Instr{Op: op})
	}
	if dt.Base != nil {
		if baseFns, ok := d.composites[dt.Base]; ok && baseFns.dtor != nil {
			fc.emit(Instr{Op: LOADLOCAL, Arg: 0})
			fc.emit(Instr{Op: CALL, Arg: d.Prog.Constant(baseFns.dtor)})
			fc.emit(Instr{Op: POP})
		}
	}
	fc.emit(Instr{Op: NIL})
	fc.emit(Instr{Op: RETURN})
	fn.Code = fc.code
	fn.MaxStack = fc.computeMaxStack()
	return fn
}

func (d *Driver) lookupCtor(dt *types.DataType) *Funcode {
	if cf, ok := d.composites[dt]; ok {
		return cf.ctor
	}
	return nil
}

// codeGenGlobalCtor chains every file-level and namespace-level variable
// initializer into a single synthesized function (spec §4.9
// CodeGenGlobalCtor), in tree (declaration) order; no init counter is
// involved. When the driver runs over several roots, each root's
// initializers are appended after those of the roots before it.
func (d *Driver) codeGenGlobalCtor(root *ast.Node) {
	fn := d.Prog.GlobalCtor
	var prior []Instr
	if fn != nil && len(fn.Code) >= 2 {
		prior = fn.Code[:len(fn.Code)-2] // an earlier root's $globalctor, minus its NIL/RETURN
	} else {
		fn = &Funcode{Name: "$globalctor", VtableIndex: -1}
	}
	fc := &fcomp{d: d, fn: fn, code: prior, localIdx: make(map[*ast.Node]int32), labels: make(map[string]int), thisIdx: -1}

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
				if init := declInit(decl); init != nil {
					if idx, ok := d.globalIndex[decl]; ok {
						fc.genExpr(init)
						fc.emit(Instr{Op: STOREGLOBAL, Arg: idx})
					}
				}
			}
		}
		childTopLevel := topLevel && (n.Kind == ast.KProgram || n.Kind == ast.KNamespaceDecl)
		for _, c := range n.Nodes {
			walk(c, childTopLevel)
		}
	}
	walk(root, true)
	fc.emit(Instr{Op: NIL})
	fc.emit(Instr{Op: RETURN})
	fn.Code = fc.code
	fn.MaxStack = fc.computeMaxStack()
	d.Prog.GlobalCtor = fn
}
