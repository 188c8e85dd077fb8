// Package parser turns a lexed byte stream into an ir.Program,
// verifying bracket balance and pre-resolving jump pairings along the
// way. The optimizer's further invariants (run-length merging, zero
// loops, dead prologue elimination) do not hold on this output yet.
package parser

import "github.com/3aKHP/BFCompiler/pkg/ir"

// Parse consumes a filtered byte stream (see pkg/lexer) and produces
// an ir.Program. LoopBegin/LoopEnd pairs carry each other's index in
// their Target field. Parse fails with a *SyntaxError wrapping
// ErrUnmatchedClose on a stray ']', or ErrUnmatchedOpen if brackets
// remain open at end of input.
func Parse(tokens []byte) (ir.Program, error) {
	prog := make(ir.Program, 0, len(tokens))
	var stack []int

	for pos, c := range tokens {
		switch c {
		case '>':
			prog = append(prog, ir.Instr{Kind: ir.MovePtr, N: 1})
		case '<':
			prog = append(prog, ir.Instr{Kind: ir.MovePtr, N: -1})
		case '+':
			prog = append(prog, ir.Instr{Kind: ir.AddVal, N: 1})
		case '-':
			prog = append(prog, ir.Instr{Kind: ir.AddVal, N: -1})
		case '.':
			prog = append(prog, ir.Instr{Kind: ir.Output})
		case ',':
			prog = append(prog, ir.Instr{Kind: ir.Input})
		case '[':
			stack = append(stack, len(prog))
			prog = append(prog, ir.Instr{Kind: ir.LoopBegin})
		case ']':
			if len(stack) == 0 {
				return nil, &SyntaxError{Pos: pos, err: ErrUnmatchedClose}
			}
			begin := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			end := len(prog)
			prog[begin].Target = end
			prog = append(prog, ir.Instr{Kind: ir.LoopEnd, Target: begin})
		}
	}

	if len(stack) > 0 {
		return nil, &SyntaxError{Pos: len(tokens), err: ErrUnmatchedOpen}
	}
	return prog, nil
}
