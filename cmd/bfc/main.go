// Command bfc compiles a tape-machine program to a Windows PE32+
// executable, or to assembly text in one of three dialects.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/3aKHP/BFCompiler/pkg/asmgen"
	"github.com/3aKHP/BFCompiler/pkg/ir"
	"github.com/3aKHP/BFCompiler/pkg/lexer"
	"github.com/3aKHP/BFCompiler/pkg/optimizer"
	"github.com/3aKHP/BFCompiler/pkg/parser"
	"github.com/3aKHP/BFCompiler/pkg/pe"
)

var (
	outPath string
	asmMode bool
	format  string
)

var rootCmd = &cobra.Command{
	Use:   "bfc <program> [--asm [--format=nasm|masm|att|gas]] [-o out]",
	Short: "Compile a tape-machine program to a PE executable or assembly",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(args[0])
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.Flags().StringVarP(&outPath, "output", "o", "", "output file path")
	rootCmd.Flags().BoolVar(&asmMode, "asm", false, "emit assembly text instead of a PE executable")
	rootCmd.Flags().StringVar(&format, "format", "nasm", "assembly dialect: nasm, masm, att, gas")
}

func run(programPath string) error {
	src, err := os.ReadFile(programPath)
	if err != nil {
		return fmt.Errorf("cannot open %q: %w", programPath, err)
	}

	prog, err := parser.Parse(lexer.Filter(src))
	if err != nil {
		return err
	}
	prog = optimizer.Optimize(prog)

	if asmMode {
		return compileAsm(programPath, prog)
	}
	return compilePE(programPath, prog)
}

func compileAsm(programPath string, prog ir.Program) error {
	dialect, ext, err := asmgen.DialectFor(format)
	if err != nil {
		return err
	}

	output := outPath
	if output == "" {
		output = replaceExt(programPath, ext)
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("cannot write %q: %w", output, err)
	}
	defer f.Close()

	if err := asmgen.Emit(f, prog, dialect); err != nil {
		return err
	}
	fmt.Println("Assembly written to:", output)
	return nil
}

func compilePE(programPath string, prog ir.Program) error {
	output := outPath
	if output == "" {
		output = replaceExt(programPath, ".exe")
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("cannot write %q: %w", output, err)
	}
	defer f.Close()

	if err := pe.Write(f, prog); err != nil {
		return err
	}
	fmt.Println("Executable written to:", output)
	return nil
}

func replaceExt(path, ext string) string {
	if dot := strings.LastIndex(path, "."); dot != -1 {
		return path[:dot] + ext
	}
	return path + ext
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "bfc:", err)
		os.Exit(1)
	}
}
