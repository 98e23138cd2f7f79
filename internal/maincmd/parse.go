package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/lethec/lang/ast"
	"github.com/mna/lethec/lang/diag"
	"github.com/mna/lethec/lang/lexer"
	"github.com/mna/lethec/lang/macro"
	"github.com/mna/lethec/lang/parser"
	"github.com/mna/lethec/lang/scope"
	"github.com/mna/mainer"
)

func (c *Cmd) Parse(ctx context.Context, stdio mainer.Stdio, args []string) error {
	cfg, err := loadEnvConfig()
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}
	return parseFilesMode(ctx, stdio, cfg.lexerMode(), args...)
}

// ParseFiles runs the lexer, macro and parser phases on each file and
// prints the resulting AST, one tree per file, sharing a single global
// scope and initializer counter the way one Compiler instance would
// across a translation unit's imports (spec §5 ordering guarantees).
func ParseFiles(ctx context.Context, stdio mainer.Stdio, files ...string) error {
	return parseFilesMode(ctx, stdio, lexer.Default, files...)
}

func parseFilesMode(ctx context.Context, stdio mainer.Stdio, mode lexer.Mode, files ...string) error {
	sink := &diag.Sink{}
	global := scope.New(scope.Global, "", nil)
	initCounter := 0

	for _, fname := range files {
		root, err := parseFile(sink, global, &initCounter, fname, mode)
		if err != nil {
			fmt.Fprintln(stdio.Stderr, err)
			continue
		}
		fmt.Fprint(stdio.Stdout, root.String())
	}

	sink.Sort()
	for _, e := range sink.Errors {
		fmt.Fprintln(stdio.Stderr, e)
	}
	return sink.Err()
}

// parseFile compiles one translation unit through the lexer+macro+parser
// pipeline, returning its AST root.
func parseFile(sink *diag.Sink, global *scope.Scope, initCounter *int, fname string, mode lexer.Mode) (*ast.Node, error) {
	src, err := os.ReadFile(fname)
	if err != nil {
		return nil, err
	}
	lx := lexer.New(fname, src, sink, mode)
	stream := macro.New(lx, sink)
	root := parser.Parse(stream, sink, fname, global, initCounter)
	return root, nil
}
