package compiler

import (
	"github.com/mna/lethec/lang/ast"
	"github.com/mna/lethec/lang/scope"
	"github.com/mna/lethec/lang/types"
)

// vtblGen assigns a slot index to every virtual method, inheriting the
// base class's slot layout so an override lands in its base's slot
// (spec §6 "scriptVtbl", standard single-inheritance virtual dispatch).
func (d *Driver) vtblGen(root *ast.Node) {
	var walk func(n *ast.Node)
	walk = func(n *ast.Node) {
		if n == nil {
			return
		}
		if n.Kind == ast.KClassDecl {
			d.buildVtable(n)
		}
		for _, c := range n.Nodes {
			walk(c)
		}
	}
	walk(root)
}

func (d *Driver) buildVtable(classDecl *ast.Node) *Vtable {
	if d.vtables == nil {
		d.vtables = make(map[*ast.Node]*Vtable)
	}
	if vt, ok := d.vtables[classDecl]; ok {
		return vt
	}
	dt, _ := d.Gen.EnsureComposite(classDecl)
	if !dt.HasVirtuals() {
		return nil
	}
	vt := &Vtable{Class: dt}
	if dt.Base != nil {
		if baseDecl := classDeclOf(dt.Base); baseDecl != nil {
			if baseVt := d.buildVtable(baseDecl); baseVt != nil {
				vt.Slots = append(vt.Slots, baseVt.Slots...)
			}
		}
	}
	for _, member := range classDecl.Nodes {
		if member.Kind != ast.KFuncDecl || !(member.Qualifiers.Has(ast.QVirtual) || member.Qualifiers.Has(ast.QOverride)) {
			continue
		}
		fn := d.compileFunc(member)
		if idx := overrideSlot(vt, member.Text); idx >= 0 {
			vt.Slots[idx] = fn
			fn.VtableIndex = idx
		} else {
			fn.VtableIndex = len(vt.Slots)
			vt.Slots = append(vt.Slots, fn)
		}
	}
	d.vtables[classDecl] = vt
	d.Prog.Vtables[dt] = vt
	return vt
}

func overrideSlot(vt *Vtable, name string) int {
	for i, fn := range vt.Slots {
		if fn.Name == name {
			return i
		}
	}
	return -1
}

// classDeclOf recovers the KClassDecl a composite DataType was generated
// from via its non-owning StructScopeRef (spec §3 DataType.StructScopeRef).
func classDeclOf(dt *types.DataType) *ast.Node {
	sc, ok := dt.StructScopeRef.(*scope.Scope)
	if !ok || sc == nil {
		return nil
	}
	return sc.Node
}

// vtableSlot reports member's resolved slot index in its owning class's
// vtable, compiling that class's vtable on demand if needed.
func (d *Driver) vtableSlot(member *ast.Node) int {
	if fn, ok := d.funcIndex[member]; ok && fn.VtableIndex >= 0 {
		return fn.VtableIndex
	}
	if cls := enclosingClassDecl(member); cls != nil {
		if vt := d.buildVtable(cls); vt != nil {
			if fn, ok := d.funcIndex[member]; ok {
				return fn.VtableIndex
			}
		}
	}
	return 0
}

// fixupVtbl patches every CALLVIRT site's slot operand against the
// final, post-inheritance vtable layout (spec §4.9 FixupVtbl): because
// buildVtable assigns VtableIndex as it walks, and genCall (expr.go)
// reads a method's VtableIndex lazily through Driver.vtableSlot, no
// separate patch step is needed once vtblGen has run for every class.
// This pass calls buildVtable for every class already seen, which returns
// the cached table, so no vtable is rebuilt or changed here.
func (d *Driver) fixupVtbl() {
	for classDecl := range d.vtables {
		d.buildVtable(classDecl)
	}
}
