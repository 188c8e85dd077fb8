// Package optimizer runs the four deterministic peephole passes that
// turn a parser-shaped ir.Program into one safe for every back end:
// consecutive pointer/value instructions are merged, "[-]"/"[+]"
// zero loops are recognized, a dead loop at program start is dropped,
// and jump pairings are re-linked to match the new positions.
package optimizer

import "github.com/3aKHP/BFCompiler/pkg/ir"

// Optimize runs passes A through D in order and returns a new
// program. The optimizer is total: it never fails on any program
// produced by pkg/parser.Parse.
func Optimize(prog ir.Program) ir.Program {
	prog = mergeRuns(prog)
	prog = recognizeZeroLoops(prog)
	prog = dropDeadPrologue(prog)
	prog = relinkJumps(prog)
	return prog
}

// mergeRuns is Pass A. It folds consecutive MovePtr/MovePtr or
// AddVal/AddVal instructions into a single instruction, dropping the
// result entirely when the merged operand is zero. It never merges
// across a LoopBegin/LoopEnd because those carry a different Kind.
func mergeRuns(prog ir.Program) ir.Program {
	out := make(ir.Program, 0, len(prog))
	for _, instr := range prog {
		if n := len(out); n > 0 {
			last := &out[n-1]
			if (instr.Kind == ir.MovePtr || instr.Kind == ir.AddVal) && instr.Kind == last.Kind {
				last.N += instr.N
				if last.N == 0 {
					out = out[:n-1]
				}
				continue
			}
		}
		out = append(out, instr)
	}
	return out
}

// recognizeZeroLoops is Pass B. It replaces the exact triple
// LoopBegin, AddVal(±1), LoopEnd with a single SetZero. Scanning is
// precise, never cascading: a replaced triple cannot itself form a
// new triple with its neighbors because SetZero carries a distinct
// Kind from LoopBegin/LoopEnd.
func recognizeZeroLoops(prog ir.Program) ir.Program {
	out := make(ir.Program, 0, len(prog))
	i := 0
	for i < len(prog) {
		if i+2 < len(prog) &&
			prog[i].Kind == ir.LoopBegin &&
			prog[i+1].Kind == ir.AddVal && (prog[i+1].N == 1 || prog[i+1].N == -1) &&
			prog[i+2].Kind == ir.LoopEnd {
			out = append(out, ir.Instr{Kind: ir.SetZero})
			i += 3
			continue
		}
		out = append(out, prog[i])
		i++
	}
	return out
}

// dropDeadPrologue is Pass C. The tape starts zero-initialized, so a
// loop at program index 0 can never execute; it and every loop that
// follows immediately after another dropped loop are discarded.
func dropDeadPrologue(prog ir.Program) ir.Program {
	i := 0
	for i < len(prog) && prog[i].Kind == ir.LoopBegin {
		depth := 0
		j := i
		for {
			switch prog[j].Kind {
			case ir.LoopBegin:
				depth++
			case ir.LoopEnd:
				depth--
			}
			j++
			if depth == 0 {
				break
			}
		}
		i = j
	}
	return prog[i:]
}

// relinkJumps is Pass D. Earlier passes shift instruction positions,
// so jump targets must be recomputed from scratch by re-walking the
// final sequence with a bracket stack.
func relinkJumps(prog ir.Program) ir.Program {
	out := make(ir.Program, len(prog))
	copy(out, prog)

	var stack []int
	for i := range out {
		switch out[i].Kind {
		case ir.LoopBegin:
			stack = append(stack, i)
		case ir.LoopEnd:
			begin := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			out[begin].Target = i
			out[i].Target = begin
		}
	}
	return out
}
