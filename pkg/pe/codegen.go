package pe

import (
	"fmt"

	"github.com/3aKHP/BFCompiler/pkg/ir"
)

// Import Address Table slot offsets, relative to the start of the
// .idata IAT. The writer keeps these in sync when it builds the
// import table.
const (
	iatGetStdHandle uint32 = 0
	iatWriteFile    uint32 = 8
	iatReadFile     uint32 = 16
	iatExitProcess  uint32 = 24
)

// Data section layout, relative to the start of .data.
const (
	dataTape     uint32 = 0
	dataWritten  uint32 = ir.TapeSize
	dataReadcnt  uint32 = ir.TapeSize + 8
	dataSize     uint32 = ir.TapeSize + 16
)

// codeGen turns an optimized program into x86-64 machine code for the
// Windows x64 calling convention. It runs in a single pass: loop jump
// displacements are recorded as placeholders and patched once the
// full instruction stream (and therefore every jump target) is known.
//
// Intra-.text jumps are patched using plain byte offsets into the
// generated buffer; only references that cross into .data or .idata
// need the section RVAs, since those are the only RIP-relative
// targets that live outside this buffer.
type codeGen struct {
	buf
	textRVA, iatRVA, dataRVA uint32
}

type loopPatch struct {
	pos        int // offset of the jz's 4-byte displacement field
	loopEndIdx int // instruction index of the matched LoopEnd
}

func newCodeGen(textRVA, iatRVA, dataRVA uint32) *codeGen {
	return &codeGen{textRVA: textRVA, iatRVA: iatRVA, dataRVA: dataRVA}
}

// ripDisp computes the rel32 displacement for a RIP-relative
// reference to targetRVA, assuming the 4-byte displacement field is
// about to be emitted at the buffer's current offset.
func (c *codeGen) ripDisp(targetRVA uint32) int32 {
	nextInstrRVA := c.textRVA + uint32(c.off()) + 4
	return int32(targetRVA) - int32(nextInstrRVA)
}

func (c *codeGen) leaRIP(reg byte, targetRVA uint32) {
	pos := c.leaRIPPlaceholder(reg)
	c.patchI32(pos, c.ripDisp(targetRVA))
}

func (c *codeGen) callRIP(targetRVA uint32) {
	pos := c.callRIPPlaceholder()
	c.patchI32(pos, c.ripDisp(targetRVA))
}

func (c *codeGen) prologue() {
	c.pushReg(regRBX)
	c.pushReg(regR12)
	c.pushReg(regR13)
	c.subReg64Imm8(regRSP, 48)
	c.leaRIP(regRBX, c.dataRVA+dataTape)

	c.movRegImm32(regRCX, -11)
	c.callRIP(c.iatRVA + iatGetStdHandle)
	c.movRegReg64(regR12, regRAX)

	c.movRegImm32(regRCX, -10)
	c.callRIP(c.iatRVA + iatGetStdHandle)
	c.movRegReg64(regR13, regRAX)
}

func (c *codeGen) epilogue() {
	c.xorReg32Self(regRCX)
	c.callRIP(c.iatRVA + iatExitProcess)
}

func (c *codeGen) movePtr(n int) {
	switch n {
	case 1:
		c.incReg64(regRBX)
	case -1:
		c.decReg64(regRBX)
	default:
		if n > 0 {
			c.addSubReg64Imm32(regRBX, int32(n), false)
		} else {
			c.addSubReg64Imm32(regRBX, int32(-n), true)
		}
	}
}

func (c *codeGen) addVal(n int) {
	switch n {
	case 1:
		c.incByteAt(regRBX)
	case -1:
		c.decByteAt(regRBX)
	default:
		if n > 0 {
			c.addSubByteAtImm8(regRBX, byte(n), false)
		} else {
			c.addSubByteAtImm8(regRBX, byte(-n), true)
		}
	}
}

func (c *codeGen) setZero() {
	c.movByteAtImm8(regRBX, 0)
}

// winAPICall emits the shared body of Output/Input: move the handle
// and buffer pointer into rcx/rdx, the length into r8d, the
// out-param address into r9, zero the 5th stack argument, then call
// through the IAT.
func (c *codeGen) winAPICall(handleReg byte, countRVA uint32, iatOffset uint32) {
	c.movRegReg64(regRCX, handleReg)
	c.movRegReg64(regRDX, regRBX)
	c.movRegImm32(regR8, 1)
	c.leaRIP(regR9, countRVA)
	c.movQwordSPOffImm32(32, 0)
	c.callRIP(c.iatRVA + iatOffset)
}

func (c *codeGen) output() {
	c.winAPICall(regR12, c.dataRVA+dataWritten, iatWriteFile)
}

func (c *codeGen) input() {
	c.winAPICall(regR13, c.dataRVA+dataReadcnt, iatReadFile)
}

// generate lowers prog into machine code. The returned byte slice is
// the full contents of the .text section.
func generate(prog ir.Program, textRVA, iatRVA, dataRVA uint32) ([]byte, error) {
	c := newCodeGen(textRVA, iatRVA, dataRVA)
	c.prologue()

	beginCmpOffset := make(map[int]int)
	afterLoopEnd := make(map[int]int)
	var patches []loopPatch

	for i, instr := range prog {
		switch instr.Kind {
		case ir.MovePtr:
			c.movePtr(instr.N)
		case ir.AddVal:
			c.addVal(instr.N)
		case ir.SetZero:
			c.setZero()
		case ir.Output:
			c.output()
		case ir.Input:
			c.input()
		case ir.LoopBegin:
			beginCmpOffset[i] = c.off()
			c.cmpByteAtImm8(regRBX, 0)
			pos := c.jccRel32Placeholder(ccJZ)
			patches = append(patches, loopPatch{pos: pos, loopEndIdx: instr.Target})
		case ir.LoopEnd:
			begin, ok := beginCmpOffset[instr.Target]
			if !ok {
				return nil, fmt.Errorf("pe: LoopEnd at %d has no matching LoopBegin", i)
			}
			c.cmpByteAtImm8(regRBX, 0)
			dispPos := c.jccRel32Placeholder(ccJNZ)
			c.patchI32(dispPos, int32(begin-(dispPos+4)))
			afterLoopEnd[i] = c.off()
		default:
			return nil, fmt.Errorf("pe: unsupported instruction kind %v", instr.Kind)
		}
	}

	c.epilogue()

	for _, p := range patches {
		target, ok := afterLoopEnd[p.loopEndIdx]
		if !ok {
			return nil, fmt.Errorf("pe: LoopBegin patch references unresolved LoopEnd %d", p.loopEndIdx)
		}
		c.patchI32(p.pos, int32(target-(p.pos+4)))
	}

	return c.b, nil
}
