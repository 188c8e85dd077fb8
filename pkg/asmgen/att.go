package asmgen

import (
	"fmt"
	"io"
)

// attDialect formats the AT&T / GNU-as dialect.
type attDialect struct{}

// NewATT returns a Dialect that formats AT&T syntax.
func NewATT() Dialect { return attDialect{} }

func (attDialect) Prologue(w io.Writer) {
	fmt.Fprintln(w, "    .data")
	fmt.Fprintln(w, "tape:")
	fmt.Fprintln(w, "    .zero 30000")
	fmt.Fprintln(w, "written:")
	fmt.Fprintln(w, "    .long 0")
	fmt.Fprintln(w, "readcnt:")
	fmt.Fprintln(w, "    .long 0")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "    .text")
	fmt.Fprintln(w, "    .globl main")
	fmt.Fprintln(w, "main:")
	fmt.Fprintln(w, "    push %rbx")
	fmt.Fprintln(w, "    push %r12")
	fmt.Fprintln(w, "    push %r13")
	fmt.Fprintln(w, "    sub $48, %rsp")
	fmt.Fprintln(w, "    lea tape(%rip), %rbx")
	fmt.Fprintf(w, "    mov $-11, %%ecx\n")
	fmt.Fprintln(w, "    call GetStdHandle")
	fmt.Fprintln(w, "    mov %rax, %r12")
	fmt.Fprintf(w, "    mov $-10, %%ecx\n")
	fmt.Fprintln(w, "    call GetStdHandle")
	fmt.Fprintln(w, "    mov %rax, %r13")
}

func (attDialect) Epilogue(w io.Writer) {
	fmt.Fprintf(w, "    xor %%ecx, %%ecx\n")
	fmt.Fprintln(w, "    call ExitProcess")
}

func (attDialect) MovePtr(w io.Writer, n int) {
	switch n {
	case 1:
		fmt.Fprintln(w, "    inc %rbx")
	case -1:
		fmt.Fprintln(w, "    dec %rbx")
	default:
		if n > 0 {
			fmt.Fprintf(w, "    add $%d, %%rbx\n", n)
		} else {
			fmt.Fprintf(w, "    sub $%d, %%rbx\n", -n)
		}
	}
}

func (attDialect) AddVal(w io.Writer, n int) {
	switch n {
	case 1:
		fmt.Fprintln(w, "    incb (%rbx)")
	case -1:
		fmt.Fprintln(w, "    decb (%rbx)")
	default:
		if n > 0 {
			fmt.Fprintf(w, "    addb $%d, (%%rbx)\n", n)
		} else {
			fmt.Fprintf(w, "    subb $%d, (%%rbx)\n", -n)
		}
	}
}

func (attDialect) SetZero(w io.Writer) {
	fmt.Fprintln(w, "    movb $0, (%rbx)")
}

func (attDialect) Output(w io.Writer) {
	fmt.Fprintln(w, "    mov %r12, %rcx")
	fmt.Fprintln(w, "    mov %rbx, %rdx")
	fmt.Fprintln(w, "    mov $1, %r8")
	fmt.Fprintln(w, "    lea written(%rip), %r9")
	fmt.Fprintln(w, "    movq $0, 32(%rsp)")
	fmt.Fprintln(w, "    call WriteFile")
}

func (attDialect) Input(w io.Writer) {
	fmt.Fprintln(w, "    mov %r13, %rcx")
	fmt.Fprintln(w, "    mov %rbx, %rdx")
	fmt.Fprintln(w, "    mov $1, %r8")
	fmt.Fprintln(w, "    lea readcnt(%rip), %r9")
	fmt.Fprintln(w, "    movq $0, 32(%rsp)")
	fmt.Fprintln(w, "    call ReadFile")
}

func (attDialect) LoopBegin(w io.Writer, id int) {
	fmt.Fprintf(w, ".L%d:\n", id)
	fmt.Fprintln(w, "    cmpb $0, (%rbx)")
	fmt.Fprintf(w, "    je .Lend%d\n", id)
}

func (attDialect) LoopEnd(w io.Writer, id int) {
	fmt.Fprintln(w, "    cmpb $0, (%rbx)")
	fmt.Fprintf(w, "    jne .L%d\n", id)
	fmt.Fprintf(w, ".Lend%d:\n", id)
}
