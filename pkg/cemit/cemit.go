// Package cemit translates an ir.Program into a self-contained,
// ISO C99 compatible C source file: a 30,000-byte zero-initialized
// tape, a cursor pointer, and a direct instruction-to-statement
// mapping. Brace indentation tracks loop nesting depth.
package cemit

import (
	"bufio"
	"fmt"
	"io"

	"github.com/3aKHP/BFCompiler/pkg/ir"
)

const indentUnit = "    "

// Emit writes a complete C99 translation of prog to w.
func Emit(w io.Writer, prog ir.Program) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "#include <stdio.h>")
	fmt.Fprintln(bw, "#include <string.h>")
	fmt.Fprintln(bw)
	fmt.Fprintln(bw, "int main(void) {")
	fmt.Fprintf(bw, "%sstatic unsigned char tape[%d];\n", indentUnit, ir.TapeSize)
	fmt.Fprintf(bw, "%sunsigned char *ptr = tape;\n", indentUnit)

	depth := 1
	indent := func() string {
		out := ""
		for i := 0; i < depth; i++ {
			out += indentUnit
		}
		return out
	}

	for _, instr := range prog {
		switch instr.Kind {
		case ir.MovePtr:
			if instr.N >= 0 {
				fmt.Fprintf(bw, "%sptr += %d;\n", indent(), instr.N)
			} else {
				fmt.Fprintf(bw, "%sptr -= %d;\n", indent(), -instr.N)
			}
		case ir.AddVal:
			if instr.N >= 0 {
				fmt.Fprintf(bw, "%s*ptr += %d;\n", indent(), instr.N)
			} else {
				fmt.Fprintf(bw, "%s*ptr -= %d;\n", indent(), -instr.N)
			}
		case ir.SetZero:
			fmt.Fprintf(bw, "%s*ptr = 0;\n", indent())
		case ir.Output:
			fmt.Fprintf(bw, "%sputchar(*ptr);\n", indent())
		case ir.Input:
			fmt.Fprintf(bw, "%s{ int c = getchar(); *ptr = (c == EOF) ? 0xFF : (unsigned char)c; }\n", indent())
		case ir.LoopBegin:
			fmt.Fprintf(bw, "%swhile (*ptr) {\n", indent())
			depth++
		case ir.LoopEnd:
			depth--
			fmt.Fprintf(bw, "%s}\n", indent())
		}
	}

	fmt.Fprintf(bw, "%sreturn 0;\n", indentUnit)
	fmt.Fprintln(bw, "}")

	return bw.Flush()
}
