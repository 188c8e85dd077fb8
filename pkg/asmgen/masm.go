package asmgen

import (
	"fmt"
	"io"
)

// masmDialect formats the Microsoft Macro Assembler dialect.
type masmDialect struct{}

// NewMASM returns a Dialect that formats MASM syntax.
func NewMASM() Dialect { return masmDialect{} }

func (masmDialect) Prologue(w io.Writer) {
	fmt.Fprintln(w, ".data")
	fmt.Fprintln(w, "tape BYTE 30000 DUP(0)")
	fmt.Fprintln(w, "written DWORD 0")
	fmt.Fprintln(w, "readcnt DWORD 0")
	fmt.Fprintln(w)
	fmt.Fprintln(w, ".code")
	fmt.Fprintln(w, "EXTERN GetStdHandle:PROC")
	fmt.Fprintln(w, "EXTERN WriteFile:PROC")
	fmt.Fprintln(w, "EXTERN ReadFile:PROC")
	fmt.Fprintln(w, "EXTERN ExitProcess:PROC")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "main PROC")
	fmt.Fprintln(w, "    push rbx")
	fmt.Fprintln(w, "    push r12")
	fmt.Fprintln(w, "    push r13")
	fmt.Fprintln(w, "    sub rsp, 48")
	fmt.Fprintln(w, "    lea rbx, tape")
	fmt.Fprintln(w, "    mov ecx, -11")
	fmt.Fprintln(w, "    call GetStdHandle")
	fmt.Fprintln(w, "    mov r12, rax")
	fmt.Fprintln(w, "    mov ecx, -10")
	fmt.Fprintln(w, "    call GetStdHandle")
	fmt.Fprintln(w, "    mov r13, rax")
}

func (masmDialect) Epilogue(w io.Writer) {
	fmt.Fprintln(w, "    xor ecx, ecx")
	fmt.Fprintln(w, "    call ExitProcess")
	fmt.Fprintln(w, "main ENDP")
	fmt.Fprintln(w, "END")
}

func (masmDialect) MovePtr(w io.Writer, n int) {
	switch n {
	case 1:
		fmt.Fprintln(w, "    inc rbx")
	case -1:
		fmt.Fprintln(w, "    dec rbx")
	default:
		if n > 0 {
			fmt.Fprintf(w, "    add rbx, %d\n", n)
		} else {
			fmt.Fprintf(w, "    sub rbx, %d\n", -n)
		}
	}
}

func (masmDialect) AddVal(w io.Writer, n int) {
	switch n {
	case 1:
		fmt.Fprintln(w, "    inc BYTE PTR [rbx]")
	case -1:
		fmt.Fprintln(w, "    dec BYTE PTR [rbx]")
	default:
		if n > 0 {
			fmt.Fprintf(w, "    add BYTE PTR [rbx], %d\n", n)
		} else {
			fmt.Fprintf(w, "    sub BYTE PTR [rbx], %d\n", -n)
		}
	}
}

func (masmDialect) SetZero(w io.Writer) {
	fmt.Fprintln(w, "    mov BYTE PTR [rbx], 0")
}

func (masmDialect) Output(w io.Writer) {
	fmt.Fprintln(w, "    mov rcx, r12")
	fmt.Fprintln(w, "    mov rdx, rbx")
	fmt.Fprintln(w, "    mov r8, 1")
	fmt.Fprintln(w, "    lea r9, written")
	fmt.Fprintln(w, "    mov QWORD PTR [rsp+32], 0")
	fmt.Fprintln(w, "    call WriteFile")
}

func (masmDialect) Input(w io.Writer) {
	fmt.Fprintln(w, "    mov rcx, r13")
	fmt.Fprintln(w, "    mov rdx, rbx")
	fmt.Fprintln(w, "    mov r8, 1")
	fmt.Fprintln(w, "    lea r9, readcnt")
	fmt.Fprintln(w, "    mov QWORD PTR [rsp+32], 0")
	fmt.Fprintln(w, "    call ReadFile")
}

func (masmDialect) LoopBegin(w io.Writer, id int) {
	fmt.Fprintf(w, "L%d:\n", id)
	fmt.Fprintln(w, "    cmp BYTE PTR [rbx], 0")
	fmt.Fprintf(w, "    je Lend%d\n", id)
}

func (masmDialect) LoopEnd(w io.Writer, id int) {
	fmt.Fprintln(w, "    cmp BYTE PTR [rbx], 0")
	fmt.Fprintf(w, "    jne L%d\n", id)
	fmt.Fprintf(w, "Lend%d:\n", id)
}
