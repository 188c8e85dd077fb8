// Command bfc2c transpiles a tape-machine program to portable C.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/3aKHP/BFCompiler/pkg/cemit"
	"github.com/3aKHP/BFCompiler/pkg/lexer"
	"github.com/3aKHP/BFCompiler/pkg/optimizer"
	"github.com/3aKHP/BFCompiler/pkg/parser"
)

var outPath string

var rootCmd = &cobra.Command{
	Use:   "bfc2c <program> [-o out.c]",
	Short: "Transpile a tape-machine program to C",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(args[0], outPath)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.Flags().StringVarP(&outPath, "output", "o", "", "output C file path")
}

func run(programPath, output string) error {
	src, err := os.ReadFile(programPath)
	if err != nil {
		return fmt.Errorf("cannot open %q: %w", programPath, err)
	}

	prog, err := parser.Parse(lexer.Filter(src))
	if err != nil {
		return err
	}
	prog = optimizer.Optimize(prog)

	if output == "" {
		output = replaceExt(programPath, ".c")
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("cannot write %q: %w", output, err)
	}
	defer f.Close()

	if err := cemit.Emit(f, prog); err != nil {
		return err
	}
	fmt.Println("Transpiled to:", output)
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
		fmt.Fprintln(os.Stderr, "bfc2c:", err)
		os.Exit(1)
	}
}
