// Package pe assembles a freestanding PE32+ (x86-64) executable
// directly from an optimized tape-machine program, with no external
// assembler or linker involved. It targets the Win64 calling
// convention and links dynamically against kernel32.dll for the four
// syscalls the runtime needs: GetStdHandle, WriteFile, ReadFile and
// ExitProcess.
package pe

import (
	"errors"
	"fmt"
	"io"

	"github.com/3aKHP/BFCompiler/pkg/ir"
)

const (
	imageBase        = 0x140000000
	sectionAlignment = 0x1000
	fileAlignment    = 0x200
	headerTextRVA    = 0x1000
)

func alignUp(v, align uint32) uint32 {
	return (v + align - 1) &^ (align - 1)
}

var importedFuncs = []string{"GetStdHandle", "WriteFile", "ReadFile", "ExitProcess"}

// importLayout is the fixed, data-independent byte layout of the
// .idata section: import directory table, ILT, IAT, then the
// hint/name table and the DLL name string. Only one DLL is imported,
// so the directory table holds a single descriptor plus its null
// terminator.
type importLayout struct {
	iltOff       uint32
	iatOff       uint32
	hintNameOffs []uint32
	dllNameOff   uint32
	size         uint32
}

const importDirectorySize = 2 * 20 // one descriptor + null terminator

func computeImportLayout() importLayout {
	n := uint32(len(importedFuncs))
	thunkTableSize := (n + 1) * 8 // entries + null terminator

	l := importLayout{
		iltOff: importDirectorySize,
		iatOff: importDirectorySize + thunkTableSize,
	}

	cur := l.iatOff + thunkTableSize
	l.hintNameOffs = make([]uint32, n)
	for i, name := range importedFuncs {
		l.hintNameOffs[i] = cur
		cur += hintNameEntrySize(name)
	}
	l.dllNameOff = cur
	l.size = cur + stringEntrySize("kernel32.dll")
	return l
}

func hintNameEntrySize(name string) uint32 {
	return stringEntrySize(name) + 2 // +2 for the Hint field
}

func stringEntrySize(s string) uint32 {
	n := uint32(len(s) + 1) // trailing NUL
	if n%2 != 0 {
		n++
	}
	return n
}

// buildImportTable renders the .idata section contents once the
// section's RVA is known: the import directory table, a shared
// ILT/IAT pair, and the hint/name table the loader resolves against.
func buildImportTable(idataRVA uint32, l importLayout) []byte {
	b := &buf{}

	// Import directory table.
	b.u32(idataRVA + l.iltOff)     // OriginalFirstThunk
	b.u32(0)                       // TimeDateStamp
	b.u32(0)                       // ForwarderChain
	b.u32(idataRVA + l.dllNameOff) // Name
	b.u32(idataRVA + l.iatOff)     // FirstThunk
	for i := 0; i < 20; i++ {
		b.byte(0) // null terminator descriptor
	}

	// ILT and IAT both reference the same hint/name entries before
	// the loader resolves the IAT to real addresses.
	for pass := 0; pass < 2; pass++ {
		for _, off := range l.hintNameOffs {
			b.u64(uint64(idataRVA + off))
		}
		b.u64(0) // null terminator
	}

	for i, name := range importedFuncs {
		if uint32(b.off()) != l.hintNameOffs[i] {
			// layout drift would silently corrupt every later
			// offset; fail loudly instead.
			panic("pe: import hint/name table offset mismatch")
		}
		b.u16(0) // Hint: always import by name
		b.b = append(b.b, []byte(name)...)
		b.byte(0)
		if b.off()%2 != 0 {
			b.byte(0)
		}
	}

	b.b = append(b.b, []byte("kernel32.dll")...)
	b.byte(0)
	if b.off()%2 != 0 {
		b.byte(0)
	}

	return b.b
}

// sectionLayout holds the resolved RVA and file-offset geometry for
// one section once the previous sections' sizes are known.
type sectionLayout struct {
	name            string
	rva             uint32
	virtualSize     uint32
	fileOff         uint32
	rawSize         uint32
	characteristics uint32
}

// Generate assembles a complete PE32+ executable image for prog and
// returns its bytes. It runs the code generator twice: once to
// measure how large .text will be, and once more after .idata and
// .data have been laid out, so the IAT and data RVAs baked into the
// instruction stream are correct.
func Generate(prog ir.Program) ([]byte, error) {
	measured, err := generate(prog, headerTextRVA, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("pe: measurement pass: %w", err)
	}
	textSize := uint32(len(measured))

	headerSize := alignUp(64+4+20+240+3*40, fileAlignment)

	text := sectionLayout{
		name:            ".text",
		rva:             headerTextRVA,
		virtualSize:     textSize,
		fileOff:         headerSize,
		rawSize:         alignUp(textSize, fileAlignment),
		characteristics: 0x60000020, // CNT_CODE | MEM_EXECUTE | MEM_READ
	}

	il := computeImportLayout()
	idata := sectionLayout{
		name:            ".idata",
		rva:             alignUp(text.rva+text.virtualSize, sectionAlignment),
		virtualSize:     il.size,
		fileOff:         text.fileOff + text.rawSize,
		rawSize:         alignUp(il.size, fileAlignment),
		characteristics: 0xC0000040, // CNT_INITIALIZED_DATA | MEM_READ | MEM_WRITE
	}

	data := sectionLayout{
		name:            ".data",
		rva:             alignUp(idata.rva+idata.virtualSize, sectionAlignment),
		virtualSize:     dataSize,
		fileOff:         idata.fileOff + idata.rawSize,
		rawSize:         alignUp(dataSize, fileAlignment),
		characteristics: 0xC0000040,
	}

	iatRVA := idata.rva + il.iatOff
	code, err := generate(prog, text.rva, iatRVA, data.rva)
	if err != nil {
		return nil, fmt.Errorf("pe: layout pass: %w", err)
	}
	if uint32(len(code)) != textSize {
		return nil, errors.New("pe: code size changed between measurement and layout passes")
	}

	idataBytes := buildImportTable(idata.rva, il)
	dataBytes := make([]byte, dataSize)
	sizeOfImage := alignUp(data.rva+data.virtualSize, sectionAlignment)

	out := &buf{}
	writeDOSHeader(out, 64) // NT headers immediately follow the 64-byte DOS header
	writePEHeader(out, peHeaderArgs{
		text: text, idata: idata, data: data,
		textSize: textSize, sizeOfImage: sizeOfImage, headerSize: headerSize,
		iatRVA: iatRVA, iatSize: (uint32(len(importedFuncs)) + 1) * 8,
		importDirRVA: idata.rva, importDirSize: importDirectorySize,
	})

	padTo(out, int(text.fileOff))
	out.bytes(code...)
	padTo(out, int(text.fileOff+text.rawSize))

	padTo(out, int(idata.fileOff))
	out.bytes(idataBytes...)
	padTo(out, int(idata.fileOff+idata.rawSize))

	padTo(out, int(data.fileOff))
	out.bytes(dataBytes...)
	padTo(out, int(data.fileOff+data.rawSize))

	return out.b, nil
}

// Write assembles prog into a PE32+ executable and writes it to w.
func Write(w io.Writer, prog ir.Program) error {
	b, err := Generate(prog)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

func padTo(b *buf, size int) {
	for b.off() < size {
		b.byte(0)
	}
}

func writeDOSHeader(b *buf, peHeaderOffset uint32) {
	start := b.off()
	b.bytes('M', 'Z')
	padTo(b, start+0x3C)
	b.u32(peHeaderOffset)
	padTo(b, start+64)
}

type peHeaderArgs struct {
	text, idata, data sectionLayout
	textSize          uint32
	sizeOfImage       uint32
	headerSize        uint32
	iatRVA, iatSize   uint32

	importDirRVA, importDirSize uint32
}

func writePEHeader(b *buf, a peHeaderArgs) {
	b.bytes('P', 'E', 0, 0)

	// IMAGE_FILE_HEADER
	b.u16(0x8664) // Machine: AMD64
	b.u16(3)      // NumberOfSections
	b.u32(0)      // TimeDateStamp
	b.u32(0)      // PointerToSymbolTable
	b.u32(0)      // NumberOfSymbols
	b.u16(240)    // SizeOfOptionalHeader
	b.u16(0x0022) // Characteristics: EXECUTABLE_IMAGE | LARGE_ADDRESS_AWARE

	// IMAGE_OPTIONAL_HEADER64
	b.u16(0x20B) // Magic: PE32+
	b.byte(1)    // MajorLinkerVersion
	b.byte(0)    // MinorLinkerVersion
	b.u32(a.textSize)
	b.u32(a.idata.rawSize + a.data.rawSize) // SizeOfInitializedData
	b.u32(0)                                // SizeOfUninitializedData
	b.u32(a.text.rva)                       // AddressOfEntryPoint
	b.u32(a.text.rva)                       // BaseOfCode
	b.u64(imageBase)
	b.u32(sectionAlignment)
	b.u32(fileAlignment)
	b.u16(6) // MajorOperatingSystemVersion
	b.u16(0) // MinorOperatingSystemVersion
	b.u16(0) // MajorImageVersion
	b.u16(0) // MinorImageVersion
	b.u16(6) // MajorSubsystemVersion
	b.u16(0) // MinorSubsystemVersion
	b.u32(0) // Win32VersionValue
	b.u32(a.sizeOfImage)
	b.u32(a.headerSize)
	b.u32(0)      // CheckSum
	b.u16(3)      // Subsystem: WINDOWS_CUI
	b.u16(0x8160) // DllCharacteristics: DYNAMIC_BASE | NX_COMPAT | TERMINAL_SERVER_AWARE | HIGH_ENTROPY_VA
	b.u64(0x100000)
	b.u64(0x1000)
	b.u64(0x100000)
	b.u64(0x1000)
	b.u32(0)  // LoaderFlags
	b.u32(16) // NumberOfRvaAndSizes

	dataDirs := make([][2]uint32, 16)
	dataDirs[1] = [2]uint32{a.importDirRVA, a.importDirSize} // Import Table
	dataDirs[12] = [2]uint32{a.iatRVA, a.iatSize}             // IAT
	for _, d := range dataDirs {
		b.u32(d[0])
		b.u32(d[1])
	}

	writeSectionHeader(b, a.text)
	writeSectionHeader(b, a.idata)
	writeSectionHeader(b, a.data)
}

func writeSectionHeader(b *buf, s sectionLayout) {
	name := make([]byte, 8)
	copy(name, s.name)
	b.bytes(name...)
	b.u32(s.virtualSize)
	b.u32(s.rva)
	b.u32(s.rawSize)
	b.u32(s.fileOff)
	b.u32(0) // PointerToRelocations
	b.u32(0) // PointerToLinenumbers
	b.u16(0)
	b.u16(0)
	b.u32(s.characteristics)
}
