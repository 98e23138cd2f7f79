package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/lethec/internal/compilerapi"
	"github.com/mna/lethec/lang/compiler"
	"github.com/mna/lethec/lang/lexer"
	"github.com/mna/lethec/lang/token"
	"github.com/mna/mainer"
)

func (c *Cmd) Codegen(ctx context.Context, stdio mainer.Stdio, args []string) error {
	cfg, err := loadEnvConfig()
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}
	return codegenFilesMode(ctx, stdio, cfg.lexerMode(), cfg.IncludeDirs, args...)
}

// CodegenFiles drives the full front end through internal/compilerapi's
// public facade (spec §6): every file is opened, compiled (with its
// imports), resolved, and code-generated into one CompiledProgram, then
// printed in the assembler textual form lang/compiler/asm.go provides.
func CodegenFiles(ctx context.Context, stdio mainer.Stdio, files ...string) error {
	return codegenFilesMode(ctx, stdio, lexer.Default, nil, files...)
}

func codegenFilesMode(ctx context.Context, stdio mainer.Stdio, mode lexer.Mode, includeDirs []string, files ...string) error {
	var hardErr error
	comp := compilerapi.New(
		compilerapi.OnError(func(msg string, loc token.Location) {
			fmt.Fprintf(stdio.Stderr, "%s: %s\n", loc, msg)
		}),
		compilerapi.WithLexerMode(mode),
		compilerapi.WithIncludeDirs(includeDirs...),
	)

	for _, fname := range files {
		f, err := os.Open(fname)
		if err != nil {
			fmt.Fprintln(stdio.Stderr, err)
			hardErr = err
			continue
		}
		_, err = comp.Compile(f, fname)
		f.Close()
		if err != nil {
			fmt.Fprintln(stdio.Stderr, err)
			hardErr = err
		}
	}
	if hardErr != nil {
		return hardErr
	}

	if err := comp.Resolve(false); err != nil {
		return err
	}

	prog := compiler.NewCompiledProgram(comp.Types.Pool, comp.Sink)
	if err := comp.CodeGen(prog); err != nil {
		return err
	}

	out, err := compiler.Dasm(prog)
	if err != nil {
		return err
	}
	stdio.Stdout.Write(out)
	return nil
}
