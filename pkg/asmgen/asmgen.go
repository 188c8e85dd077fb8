// Package asmgen formats an ir.Program as Windows x86-64 assembly
// text in one of three syntax dialects. All three dialects share the
// exact same instruction shape (see Dialect) and differ only in how
// they spell it; Emit walks the program once and dispatches each
// intermediate instruction to the active dialect.
package asmgen

import (
	"fmt"
	"io"

	"github.com/3aKHP/BFCompiler/pkg/ir"
)

// Dialect formats one syntax flavor of the shared instruction shape
// described in the package doc. LoopBegin/LoopEnd receive the index
// of the matched LoopBegin instruction as their label id, which is
// always unique per loop regardless of nesting because it is the
// matched instruction's own position in the program.
type Dialect interface {
	Prologue(w io.Writer)
	Epilogue(w io.Writer)
	MovePtr(w io.Writer, n int)
	AddVal(w io.Writer, n int)
	SetZero(w io.Writer)
	Output(w io.Writer)
	Input(w io.Writer)
	LoopBegin(w io.Writer, id int)
	LoopEnd(w io.Writer, id int)
}

// Emit writes prog to w in the syntax of the given dialect.
func Emit(w io.Writer, prog ir.Program, d Dialect) error {
	d.Prologue(w)
	for i, instr := range prog {
		switch instr.Kind {
		case ir.MovePtr:
			d.MovePtr(w, instr.N)
		case ir.AddVal:
			d.AddVal(w, instr.N)
		case ir.SetZero:
			d.SetZero(w)
		case ir.Output:
			d.Output(w)
		case ir.Input:
			d.Input(w)
		case ir.LoopBegin:
			d.LoopBegin(w, i)
		case ir.LoopEnd:
			d.LoopEnd(w, instr.Target)
		}
	}
	d.Epilogue(w)
	return nil
}

// Format names one of the four accepted --format values. "att" and
// "gas" both select the AT&T dialect.
type Format string

const (
	NASM Format = "nasm"
	MASM Format = "masm"
	ATT  Format = "att"
	GAS  Format = "gas"
)

// DialectFor maps a --format argument to a Dialect and the default
// file extension the CLI should use for it, or reports
// ErrUnknownFormat.
func DialectFor(format string) (Dialect, string, error) {
	switch Format(format) {
	case NASM:
		return NewNASM(), ".asm", nil
	case MASM:
		return NewMASM(), ".asm", nil
	case ATT, GAS:
		return NewATT(), ".s", nil
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}
