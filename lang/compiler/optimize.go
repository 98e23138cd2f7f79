package compiler

// optimize runs a small peephole pass over every compiled function (spec
// §4.9 Optimize): it turns a push immediately undone by a pop, and a jump
// to the very next instruction, into NOPs, the two patterns cheap to
// recognize without a full dataflow analysis. Jump target indices are left untouched by removal: instead of
// shifting Code and re-patching every Arg (as a real implementation would
// need a separate remap table for), this pass only rewrites instructions
// in place, preserving instruction count and indices.
func (d *Driver) optimize() {
	for _, fn := range d.Prog.Functions {
		optimizeFunc(fn)
	}
	if d.Prog.GlobalCtor != nil {
		optimizeFunc(d.Prog.GlobalCtor)
	}
	if d.Prog.GlobalDtor != nil {
		optimizeFunc(d.Prog.GlobalDtor)
	}
}

func optimizeFunc(fn *Funcode) {
	for i := 0; i+1 < len(fn.Code); i++ {
		cur, next := fn.Code[i], fn.Code[i+1]
		// push-then-immediately-pop cancels out.
		switch cur.Op {
		case DUP, NIL, CICONST, LOADLOCAL, LOADGLOBAL:
			if next.Op == POP {
				fn.Code[i] = Instr{Op: NOP}
				fn.Code[i+1] = Instr{Op: NOP}
			}
		}
		// jmp to the very next instruction is a no-op.
		if cur.Op == JMP && int(cur.Arg) == i+1 {
			fn.Code[i] = Instr{Op: NOP}
		}
	}
}
