package parser

import (
	"errors"
	"testing"

	"github.com/3aKHP/BFCompiler/pkg/ir"
	"github.com/3aKHP/BFCompiler/pkg/lexer"
)

func mustParse(t *testing.T, src string) ir.Program {
	t.Helper()
	prog, err := Parse(lexer.Filter([]byte(src)))
	if err != nil {
		t.Fatalf("Parse(%q) returned error: %v", src, err)
	}
	return prog
}

func TestParseSimple(t *testing.T) {
	prog := mustParse(t, "+-><.,")
	wantKinds := []ir.Kind{ir.AddVal, ir.AddVal, ir.MovePtr, ir.MovePtr, ir.Output, ir.Input}
	if len(prog) != len(wantKinds) {
		t.Fatalf("len(prog) = %d, want %d", len(prog), len(wantKinds))
	}
	for i, k := range wantKinds {
		if prog[i].Kind != k {
			t.Errorf("prog[%d].Kind = %v, want %v", i, prog[i].Kind, k)
		}
	}
}

func TestParseBracketPairing(t *testing.T) {
	prog := mustParse(t, "[-]")
	if prog[0].Kind != ir.LoopBegin || prog[0].Target != 2 {
		t.Fatalf("LoopBegin target = %d, want 2", prog[0].Target)
	}
	if prog[2].Kind != ir.LoopEnd || prog[2].Target != 0 {
		t.Fatalf("LoopEnd target = %d, want 0", prog[2].Target)
	}
}

func TestParseNestedBrackets(t *testing.T) {
	prog := mustParse(t, "[[-]]")
	// indices: 0 [outer  1 [inner  2 -  3 ]inner  4 ]outer
	if prog[0].Target != 4 {
		t.Errorf("outer LoopBegin target = %d, want 4", prog[0].Target)
	}
	if prog[1].Target != 3 {
		t.Errorf("inner LoopBegin target = %d, want 3", prog[1].Target)
	}
	if prog[3].Target != 1 {
		t.Errorf("inner LoopEnd target = %d, want 1", prog[3].Target)
	}
	if prog[4].Target != 0 {
		t.Errorf("outer LoopEnd target = %d, want 0", prog[4].Target)
	}
}

func TestParseUnmatchedClose(t *testing.T) {
	_, err := Parse(lexer.Filter([]byte("+]")))
	if !errors.Is(err, ErrUnmatchedClose) {
		t.Fatalf("err = %v, want ErrUnmatchedClose", err)
	}
}

func TestParseUnmatchedOpen(t *testing.T) {
	_, err := Parse(lexer.Filter([]byte("+[")))
	if !errors.Is(err, ErrUnmatchedOpen) {
		t.Fatalf("err = %v, want ErrUnmatchedOpen", err)
	}
}

func TestParseEmpty(t *testing.T) {
	prog := mustParse(t, "")
	if len(prog) != 0 {
		t.Fatalf("len(prog) = %d, want 0", len(prog))
	}
}
