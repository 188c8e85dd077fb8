package cemit

import (
	"bytes"
	"strings"
	"testing"

	"github.com/3aKHP/BFCompiler/pkg/lexer"
	"github.com/3aKHP/BFCompiler/pkg/parser"
)

func emit(t *testing.T, src string) string {
	t.Helper()
	prog, err := parser.Parse(lexer.Filter([]byte(src)))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var out bytes.Buffer
	if err := Emit(&out, prog); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	return out.String()
}

func TestEmitHasTapeAndMain(t *testing.T) {
	got := emit(t, "+.")
	if !strings.Contains(got, "unsigned char tape[30000]") {
		t.Fatalf("missing tape declaration:\n%s", got)
	}
	if !strings.Contains(got, "int main(void) {") {
		t.Fatalf("missing main signature:\n%s", got)
	}
	if !strings.Contains(got, "return 0;") {
		t.Fatalf("missing return statement:\n%s", got)
	}
}

func TestEmitLoopBraces(t *testing.T) {
	got := emit(t, "+[-]")
	if strings.Count(got, "while (*ptr) {") != 1 {
		t.Fatalf("expected one while loop:\n%s", got)
	}
	opens := strings.Count(got, "{")
	closes := strings.Count(got, "}")
	if opens != closes {
		t.Fatalf("unbalanced braces: %d open, %d close\n%s", opens, closes, got)
	}
}

func TestEmitUnoptimizedZeroLoopStaysWhile(t *testing.T) {
	got := emit(t, "[-]")
	if !strings.Contains(got, "while (*ptr) {") {
		t.Fatalf("unoptimized [-] should stay a while loop:\n%s", got)
	}
}
