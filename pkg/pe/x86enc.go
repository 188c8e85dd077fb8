package pe

import "encoding/binary"

// x86-64 general-purpose register encodings used by the code
// generator. Only the registers the generated program actually
// touches are named.
const (
	regRAX byte = 0
	regRCX byte = 1
	regRDX byte = 2
	regRBX byte = 3
	regRSP byte = 4
	regR8  byte = 8
	regR9  byte = 9
	regR12 byte = 12
	regR13 byte = 13
)

// buf is a growable little-endian byte buffer with the handful of
// x86-64 encoding primitives the generator needs. It knows nothing
// about RVAs; RIP-relative target resolution lives in codegen.go.
type buf struct {
	b []byte
}

func (x *buf) off() int { return len(x.b) }

func (x *buf) byte(v byte) { x.b = append(x.b, v) }

func (x *buf) bytes(vs ...byte) { x.b = append(x.b, vs...) }

func (x *buf) u32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	x.b = append(x.b, tmp[:]...)
}

func (x *buf) i32(v int32) { x.u32(uint32(v)) }

func (x *buf) u16(v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	x.b = append(x.b, tmp[:]...)
}

func (x *buf) u64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	x.b = append(x.b, tmp[:]...)
}

// patchI32 overwrites the 4 bytes starting at pos with v. pos must
// have been obtained from x.off() before the placeholder bytes were
// written.
func (x *buf) patchI32(pos int, v int32) {
	binary.LittleEndian.PutUint32(x.b[pos:pos+4], uint32(v))
}

// rex builds a REX prefix byte. w selects 64-bit operand size; r, x
// and b extend the modrm.reg, sib.index and modrm.rm/sib.base fields
// respectively for registers 8-15.
func rex(w, r, x, b bool) byte {
	v := byte(0x40)
	if w {
		v |= 0x08
	}
	if r {
		v |= 0x04
	}
	if x {
		v |= 0x02
	}
	if b {
		v |= 0x01
	}
	return v
}

func modrm(mod, reg, rm byte) byte {
	return (mod << 6) | ((reg & 7) << 3) | (rm & 7)
}

// pushReg emits PUSH for a 64-bit register.
func (x *buf) pushReg(reg byte) {
	if reg >= 8 {
		x.byte(rex(false, false, false, true))
	}
	x.byte(0x50 + (reg & 7))
}

// movRegImm32 emits `mov reg32, imm32`, zero-extending into the full
// 64-bit register. Used for the small constant arguments the Win64
// ABI calls need (handle selectors, byte counts).
func (x *buf) movRegImm32(reg byte, imm int32) {
	if reg >= 8 {
		x.byte(rex(false, false, false, true))
	}
	x.byte(0xB8 + (reg & 7))
	x.i32(imm)
}

// movRegReg64 emits `mov dst, src` for two 64-bit registers.
func (x *buf) movRegReg64(dst, src byte) {
	x.byte(rex(true, src >= 8, false, dst >= 8))
	x.byte(0x89)
	x.byte(modrm(3, src, dst))
}

// xorReg32Self emits `xor reg32, reg32`.
func (x *buf) xorReg32Self(reg byte) {
	if reg >= 8 {
		x.byte(rex(false, true, false, true))
	}
	x.byte(0x33)
	x.byte(modrm(3, reg, reg))
}

// incReg64 / decReg64 emit INC/DEC on a 64-bit register.
func (x *buf) incReg64(reg byte) {
	x.byte(rex(true, false, false, reg >= 8))
	x.byte(0xFF)
	x.byte(modrm(3, 0, reg))
}

func (x *buf) decReg64(reg byte) {
	x.byte(rex(true, false, false, reg >= 8))
	x.byte(0xFF)
	x.byte(modrm(3, 1, reg))
}

// addSubReg64Imm32 emits `add reg, imm32` (sub=false) or
// `sub reg, imm32` (sub=true).
func (x *buf) addSubReg64Imm32(reg byte, imm int32, sub bool) {
	x.byte(rex(true, false, false, reg >= 8))
	x.byte(0x81)
	op := byte(0)
	if sub {
		op = 5
	}
	x.byte(modrm(3, op, reg))
	x.i32(imm)
}

// subReg64Imm8 emits the compact `sub reg, imm8` form (opcode 0x83),
// used for the fixed 48-byte shadow-space reservation in the
// prologue.
func (x *buf) subReg64Imm8(reg byte, imm byte) {
	x.byte(rex(true, false, false, reg >= 8))
	x.byte(0x83)
	x.byte(modrm(3, 5, reg))
	x.byte(imm)
}

// incByteAt / decByteAt emit INC/DEC on the byte at [reg].
func (x *buf) incByteAt(reg byte) {
	if reg >= 8 {
		x.byte(rex(false, false, false, true))
	}
	x.byte(0xFE)
	x.byte(modrm(0, 0, reg))
}

func (x *buf) decByteAt(reg byte) {
	if reg >= 8 {
		x.byte(rex(false, false, false, true))
	}
	x.byte(0xFE)
	x.byte(modrm(0, 1, reg))
}

// addSubByteAtImm8 emits `add byte [reg], imm8` (sub=false) or
// `sub byte [reg], imm8` (sub=true).
func (x *buf) addSubByteAtImm8(reg byte, imm byte, sub bool) {
	if reg >= 8 {
		x.byte(rex(false, false, false, true))
	}
	x.byte(0x80)
	op := byte(0)
	if sub {
		op = 5
	}
	x.byte(modrm(0, op, reg))
	x.byte(imm)
}

// movByteAtImm8 emits `mov byte [reg], imm8`.
func (x *buf) movByteAtImm8(reg byte, imm byte) {
	if reg >= 8 {
		x.byte(rex(false, false, false, true))
	}
	x.byte(0xC6)
	x.byte(modrm(0, 0, reg))
	x.byte(imm)
}

// cmpByteAtImm8 emits `cmp byte [reg], imm8`.
func (x *buf) cmpByteAtImm8(reg byte, imm byte) {
	if reg >= 8 {
		x.byte(rex(false, false, false, true))
	}
	x.byte(0x80)
	x.byte(modrm(0, 7, reg))
	x.byte(imm)
}

// movQwordSPOffImm32 emits `mov qword [rsp+off], imm32` (sign
// extended), used to place the 5th (stack) argument of WriteFile and
// ReadFile.
func (x *buf) movQwordSPOffImm32(off uint8, imm int32) {
	x.byte(rex(true, false, false, false))
	x.byte(0xC7)
	x.byte(modrm(1, 0, regRSP))
	x.byte(0x24) // SIB: no index, base = rsp
	x.byte(off)
	x.i32(imm)
}

// leaRIPPlaceholder emits `lea reg, [rip+disp32]` with a zero
// placeholder displacement and returns the offset of the 4-byte
// displacement field so the caller can compute and patch it once the
// target RVA is known.
func (x *buf) leaRIPPlaceholder(reg byte) int {
	x.byte(rex(true, reg >= 8, false, false))
	x.byte(0x8D)
	x.byte(modrm(0, reg, 5))
	pos := x.off()
	x.i32(0)
	return pos
}

// callRIPPlaceholder emits `call qword [rip+disp32]` (an indirect
// call through an IAT slot) with a zero placeholder displacement and
// returns the offset of the displacement field.
func (x *buf) callRIPPlaceholder() int {
	x.byte(0xFF)
	x.byte(modrm(0, 2, 5))
	pos := x.off()
	x.i32(0)
	return pos
}

// jccRel32Placeholder emits a two-byte 0F opcode (0x84 for JZ, 0x85
// for JNZ) followed by a 4-byte placeholder displacement, and returns
// the offset of that displacement field.
func (x *buf) jccRel32Placeholder(cc byte) int {
	x.byte(0x0F)
	x.byte(cc)
	pos := x.off()
	x.i32(0)
	return pos
}

const (
	ccJZ  byte = 0x84
	ccJNZ byte = 0x85
)
