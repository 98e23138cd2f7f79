package compiler

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// This file gives CompiledProgram a human-readable textual form, the way
// the teacher's lang/compiler/asm.go lets tests exercise the VM without
// going through parsing and name resolution. Rather than reproduce the
// teacher's bespoke varint-encoded assembly grammar — built around a
// byte-packed Code stream lang/compiler here has no equivalent of, since
// Funcode.Code is already a plain []Instr — the textual form is a
// yaml.v3 document (spec §2 domain-stack: "compiler asm/dasm golden
// fixtures"), giving the codegen command a readable, structural dump of
// compiled output; no test reads it.

// dasmProgram/dasmFunc mirror CompiledProgram/Funcode's printable shape;
// kept separate from the live structures so the textual form doesn't leak
// non-owning pointers (Vtables, Node back-references) into the dump.
type dasmProgram struct {
	Names     []string    `yaml:"names,omitempty"`
	Constants []string    `yaml:"constants,omitempty"`
	Globals   []string    `yaml:"globals,omitempty"`
	Functions []dasmFunc  `yaml:"functions"`
	Vtables   []dasmVtbl  `yaml:"vtables,omitempty"`
}

type dasmFunc struct {
	Name      string   `yaml:"name"`
	MaxStack  int      `yaml:"stack"`
	NumParams int      `yaml:"params"`
	Locals    []string `yaml:"locals,omitempty"`
	Code      []string `yaml:"code"`
}

type dasmVtbl struct {
	Class string   `yaml:"class"`
	Slots []string `yaml:"slots"`
}

// Dasm renders a compiled program to its assembler textual form.
func Dasm(p *CompiledProgram) ([]byte, error) {
	var dp dasmProgram
	dp.Names = append(dp.Names, p.Names...)
	for _, c := range p.Constants {
		dp.Constants = append(dp.Constants, fmt.Sprintf("%v", c))
	}
	for _, g := range p.Globals {
		dp.Globals = append(dp.Globals, g.Name)
	}
	for _, fn := range p.Functions {
		dp.Functions = append(dp.Functions, dasmFn(fn))
	}
	if p.GlobalCtor != nil {
		dp.Functions = append(dp.Functions, dasmFn(p.GlobalCtor))
	}
	for _, vt := range p.Vtables {
		var dv dasmVtbl
		if vt.Class != nil {
			dv.Class = vt.Class.Name
		}
		for _, slot := range vt.Slots {
			if slot == nil {
				dv.Slots = append(dv.Slots, "<nil>")
				continue
			}
			dv.Slots = append(dv.Slots, slot.Name)
		}
		dp.Vtables = append(dp.Vtables, dv)
	}
	return yaml.Marshal(&dp)
}

func dasmFn(fn *Funcode) dasmFunc {
	df := dasmFunc{Name: fn.Name, MaxStack: fn.MaxStack, NumParams: fn.NumParams}
	for _, l := range fn.Locals {
		df.Locals = append(df.Locals, l.Name)
	}
	for i, in := range fn.Code {
		if in.Op == NOP && i > 0 {
			continue // optimize.go leaves cancelled pairs as NOP placeholders
		}
		if opHasArg(in.Op) {
			df.Code = append(df.Code, fmt.Sprintf("%s %d", in.Op, in.Arg))
		} else {
			df.Code = append(df.Code, in.Op.String())
		}
	}
	return df
}

func opHasArg(op Opcode) bool {
	switch op {
	case NOP, POP, DUP, DUP2, NIL,
		ADD, SUB, MUL, DIV, MOD, BAND, BOR, BXOR, SHL, SHR,
		LT, LE, GT, GE, EQ, NE,
		NEG, BNOT, LNOT, PREINC, PREDEC, POSTINC, POSTDEC,
		RETURN, INDEX, SETINDEX, INDEXREF:
		return false
	default:
		return true
	}
}
