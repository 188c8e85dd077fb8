package optimizer

import (
	"testing"

	"github.com/3aKHP/BFCompiler/pkg/ir"
	"github.com/3aKHP/BFCompiler/pkg/lexer"
	"github.com/3aKHP/BFCompiler/pkg/parser"
)

func optimizeSource(t *testing.T, src string) ir.Program {
	t.Helper()
	prog, err := parser.Parse(lexer.Filter([]byte(src)))
	if err != nil {
		t.Fatalf("parse(%q): %v", src, err)
	}
	return Optimize(prog)
}

func TestMergeRuns(t *testing.T) {
	prog := optimizeSource(t, "+++---")
	if len(prog) != 0 {
		t.Fatalf("len(prog) = %d, want 0 (net zero should vanish)", len(prog))
	}
}

func TestMergeRunsNonZero(t *testing.T) {
	prog := optimizeSource(t, ">>>")
	if len(prog) != 1 || prog[0].Kind != ir.MovePtr || prog[0].N != 3 {
		t.Fatalf("prog = %+v, want single MovePtr(3)", prog)
	}
}

func TestZeroLoopRecognition(t *testing.T) {
	prog := optimizeSource(t, "+[-]")
	if len(prog) != 2 {
		t.Fatalf("len(prog) = %d, want 2, prog=%+v", len(prog), prog)
	}
	if prog[1].Kind != ir.SetZero {
		t.Fatalf("prog[1].Kind = %v, want SetZero", prog[1].Kind)
	}
}

func TestZeroLoopConservativeOnNonUnitStep(t *testing.T) {
	prog := optimizeSource(t, "+[--]")
	for _, instr := range prog {
		if instr.Kind == ir.SetZero {
			t.Fatalf("prog = %+v, [--] must not be recognized as a zero loop", prog)
		}
	}
}

func TestDeadPrologueElimination(t *testing.T) {
	prog := optimizeSource(t, "[>>>>>>>>>]")
	if len(prog) != 0 {
		t.Fatalf("len(prog) = %d, want 0", len(prog))
	}
}

func TestDeadPrologueDoesNotTouchLiveLoop(t *testing.T) {
	prog := optimizeSource(t, "+[-]")
	if len(prog) == 0 {
		t.Fatalf("live loop preceded by non-loop instruction must survive")
	}
}

func TestNoLoopBeginAtIndexZero(t *testing.T) {
	prog := optimizeSource(t, "[-][+]")
	if len(prog) > 0 && prog[0].Kind == ir.LoopBegin {
		t.Fatalf("prog[0] is LoopBegin after optimization: %+v", prog)
	}
}

func TestJumpsStayMutuallyConsistent(t *testing.T) {
	prog := optimizeSource(t, "+[>+[>+<-]<-]")
	for i, instr := range prog {
		switch instr.Kind {
		case ir.LoopBegin:
			if prog[instr.Target].Kind != ir.LoopEnd || prog[instr.Target].Target != i {
				t.Fatalf("LoopBegin at %d has inconsistent target %d", i, instr.Target)
			}
		case ir.LoopEnd:
			if prog[instr.Target].Kind != ir.LoopBegin || prog[instr.Target].Target != i {
				t.Fatalf("LoopEnd at %d has inconsistent target %d", i, instr.Target)
			}
		}
	}
}

func TestOptimizeIdempotent(t *testing.T) {
	prog := optimizeSource(t, "+++[>++[>+<-]<-]>>.")
	once := Optimize(prog)
	twice := Optimize(once)
	if len(once) != len(twice) {
		t.Fatalf("optimize is not idempotent: lengths %d != %d", len(once), len(twice))
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Fatalf("optimize is not idempotent at index %d: %+v != %+v", i, once[i], twice[i])
		}
	}
}

func TestNoZeroOperandAddVal(t *testing.T) {
	prog := optimizeSource(t, "+-+-+-")
	for _, instr := range prog {
		if instr.Kind == ir.AddVal && instr.N == 0 {
			t.Fatalf("found zero-operand AddVal in %+v", prog)
		}
	}
}
