// Command bfi interprets a tape-machine program directly, reading its
// runtime input from stdin and writing output to stdout.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/3aKHP/BFCompiler/pkg/interp"
	"github.com/3aKHP/BFCompiler/pkg/lexer"
	"github.com/3aKHP/BFCompiler/pkg/optimizer"
	"github.com/3aKHP/BFCompiler/pkg/parser"
)

var rootCmd = &cobra.Command{
	Use:   "bfi <program>",
	Short: "Interpret a tape-machine program",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(args[0])
	},
	SilenceUsage: true,
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

	return interp.Run(prog, os.Stdin, os.Stdout)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "bfi:", err)
		os.Exit(1)
	}
}
