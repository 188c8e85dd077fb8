// Package interp runs an ir.Program directly against a tape of
// 30,000 byte cells. It is deliberately the simplest back end: a
// straight dispatch loop over the intermediate instructions.
package interp

import (
	"io"

	"github.com/3aKHP/BFCompiler/pkg/ir"
)

// eofSentinel is the byte value a read past end-of-stream installs
// into the current cell, matching a signed getchar() returning EOF.
const eofSentinel = 0xFF

// Run interprets prog against a fresh 30,000-cell tape, reading
// Input bytes from in and writing Output bytes to out. The data
// pointer starts at cell 0; pointer arithmetic that leaves
// [0, ir.TapeSize) is undefined behavior of the source program and is
// not checked.
func Run(prog ir.Program, in io.Reader, out io.Writer) error {
	var tape [ir.TapeSize]byte
	ptr := 0
	pc := 0
	var buf [1]byte
	bw, isBw := out.(io.ByteWriter)

	for pc < len(prog) {
		instr := prog[pc]
		switch instr.Kind {
		case ir.MovePtr:
			ptr += instr.N
		case ir.AddVal:
			tape[ptr] += byte(instr.N)
		case ir.SetZero:
			tape[ptr] = 0
		case ir.Output:
			if isBw {
				if err := bw.WriteByte(tape[ptr]); err != nil {
					return err
				}
			} else {
				buf[0] = tape[ptr]
				if _, err := out.Write(buf[:]); err != nil {
					return err
				}
			}
		case ir.Input:
			n, err := in.Read(buf[:])
			switch {
			case n == 1:
				tape[ptr] = buf[0]
			case err != nil && err != io.EOF:
				return err
			default:
				tape[ptr] = eofSentinel
			}
		case ir.LoopBegin:
			if tape[ptr] == 0 {
				pc = instr.Target
			}
		case ir.LoopEnd:
			if tape[ptr] != 0 {
				pc = instr.Target
			}
		}
		pc++
	}
	return nil
}
