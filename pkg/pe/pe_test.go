package pe

import (
	"encoding/binary"
	"testing"

	"github.com/3aKHP/BFCompiler/pkg/ir"
	"github.com/3aKHP/BFCompiler/pkg/lexer"
	"github.com/3aKHP/BFCompiler/pkg/optimizer"
	"github.com/3aKHP/BFCompiler/pkg/parser"
)

func buildProgram(t *testing.T, src string) ir.Program {
	t.Helper()
	prog, err := parser.Parse(lexer.Filter([]byte(src)))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return optimizer.Optimize(prog)
}

func TestGenerateProducesValidHeaders(t *testing.T) {
	prog := buildProgram(t, "+++.,[-]")
	out, err := Generate(prog)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(out) < 64 || string(out[:2]) != "MZ" {
		t.Fatalf("missing MZ signature")
	}
	lfanew := binary.LittleEndian.Uint32(out[0x3C:])
	peSig := out[lfanew : lfanew+4]
	if string(peSig[:2]) != "PE" || peSig[2] != 0 || peSig[3] != 0 {
		t.Fatalf("missing PE signature at %d: %v", lfanew, peSig)
	}
	fileHeader := out[lfanew+4:]
	machine := binary.LittleEndian.Uint16(fileHeader[0:])
	if machine != 0x8664 {
		t.Fatalf("machine = %#x, want 0x8664", machine)
	}
	numSections := binary.LittleEndian.Uint16(fileHeader[2:])
	if numSections != 3 {
		t.Fatalf("numSections = %d, want 3", numSections)
	}
	optHeader := fileHeader[20:]
	magic := binary.LittleEndian.Uint16(optHeader[0:])
	if magic != 0x20B {
		t.Fatalf("optional header magic = %#x, want 0x20B (PE32+)", magic)
	}
}

func TestGenerateRoundTripsThroughLayoutPass(t *testing.T) {
	// A program with many nested loops stresses the two-pass
	// measure-then-layout pipeline; if code size weren't
	// RVA-independent this would fail the internal consistency check
	// inside Generate.
	_, err := Generate(buildProgram(t, "+[>+[>+[>+<-]<-]<-]"))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
}

// patchedDisp decodes a little-endian int32 at pos.
func patchedDisp(code []byte, pos int) int32 {
	return int32(binary.LittleEndian.Uint32(code[pos : pos+4]))
}

func TestLoopJumpDisplacementsAreSelfConsistent(t *testing.T) {
	prog := buildProgram(t, "+[>+<-]")
	code, err := generate(prog, 0x1000, 0x2000, 0x3000)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	// Re-derive the offsets generate() must have produced by walking
	// the same instruction sequence with a scratch encoder.
	c := newCodeGen(0x1000, 0x2000, 0x3000)
	c.prologue()
	c.addVal(1) // '+'

	beginCmp := c.off()
	c.cmpByteAtImm8(regRBX, 0)
	jzDispPos := c.jccRel32Placeholder(ccJZ)

	c.movePtr(1) // '>'
	c.addVal(1)  // '+'
	c.movePtr(-1) // '<'
	c.addVal(-1)  // '-'

	c.cmpByteAtImm8(regRBX, 0)
	jnzDispPos := c.jccRel32Placeholder(ccJNZ)
	afterLoop := c.off()

	if len(code) < afterLoop {
		t.Fatalf("generated code shorter than expected scratch trace")
	}

	jzDisp := patchedDisp(code, jzDispPos)
	jzTarget := jzDispPos + 4 + int(jzDisp)
	if jzTarget != afterLoop {
		t.Fatalf("jz target = %d, want %d (instruction after matched LoopEnd)", jzTarget, afterLoop)
	}

	jnzDisp := patchedDisp(code, jnzDispPos)
	jnzTarget := jnzDispPos + 4 + int(jnzDisp)
	if jnzTarget != beginCmp {
		t.Fatalf("jnz target = %d, want %d (start of LoopBegin's compare)", jnzTarget, beginCmp)
	}
}

func TestLoopEndAsLastInstructionTargetsEpilogue(t *testing.T) {
	// "+[>]" keeps a real LoopBegin/LoopEnd pair: its body is a bare
	// MovePtr, which recognizeZeroLoops does not fold into SetZero.
	prog := buildProgram(t, "+[>]")
	code, err := generate(prog, 0x1000, 0x2000, 0x3000)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	c := newCodeGen(0x1000, 0x2000, 0x3000)
	c.prologue()
	c.addVal(1)
	c.cmpByteAtImm8(regRBX, 0)
	jzDispPos := c.jccRel32Placeholder(ccJZ)
	c.movePtr(1)
	c.cmpByteAtImm8(regRBX, 0)
	jnzDispPos := c.jccRel32Placeholder(ccJNZ)
	epilogueStart := c.off()

	jzDisp := patchedDisp(code, jzDispPos)
	if jzDispPos+4+int(jzDisp) != epilogueStart {
		t.Fatalf("jz should target the epilogue when LoopEnd is the last instruction")
	}
	_ = jnzDispPos
}

func TestImportLayoutIsWordAligned(t *testing.T) {
	l := computeImportLayout()
	for i, off := range l.hintNameOffs {
		if off%2 != 0 {
			t.Errorf("hint/name entry %d at odd offset %d", i, off)
		}
	}
	if l.dllNameOff%2 != 0 {
		t.Errorf("dll name at odd offset %d", l.dllNameOff)
	}
	if l.size%2 != 0 {
		t.Errorf("import table size %d not word aligned", l.size)
	}
}
