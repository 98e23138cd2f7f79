package maincmd

import (
	"context"
	"fmt"

	"github.com/mna/lethec/lang/ast"
	"github.com/mna/lethec/lang/diag"
	"github.com/mna/lethec/lang/lexer"
	"github.com/mna/lethec/lang/resolver"
	"github.com/mna/lethec/lang/scope"
	"github.com/mna/lethec/lang/types"
	"github.com/mna/mainer"
)

func (c *Cmd) Resolve(ctx context.Context, stdio mainer.Stdio, args []string) error {
	cfg, err := loadEnvConfig()
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}
	return resolveFilesMode(ctx, stdio, cfg.lexerMode(), args...)
}

// ResolveFiles parses every file into one shared global scope (so they can
// refer to each other, as imports would), then runs the resolver's
// fix-point pass over the combined roots and prints each resolved AST.
func ResolveFiles(ctx context.Context, stdio mainer.Stdio, files ...string) error {
	return resolveFilesMode(ctx, stdio, lexer.Default, files...)
}

func resolveFilesMode(ctx context.Context, stdio mainer.Stdio, mode lexer.Mode, files ...string) error {
	sink := &diag.Sink{}
	global := scope.New(scope.Global, "", nil)
	initCounter := 0

	roots := make([]*ast.Node, 0, len(files))
	for _, fname := range files {
		root, err := parseFile(sink, global, &initCounter, fname, mode)
		if err != nil {
			fmt.Fprintln(stdio.Stderr, err)
			continue
		}
		roots = append(roots, root)
	}

	if sink.Err() != nil {
		// cannot resolve an AST that failed to parse
		sink.Sort()
		for _, e := range sink.Errors {
			fmt.Fprintln(stdio.Stderr, e)
		}
		return sink.Err()
	}

	pool := types.NewPool()
	gen := types.NewGen(pool, sink)
	res := resolver.New(sink, gen)
	for _, root := range roots {
		res.Run(root)
	}

	for _, root := range roots {
		fmt.Fprint(stdio.Stdout, root.String())
	}

	sink.Sort()
	for _, e := range sink.Errors {
		fmt.Fprintln(stdio.Stderr, e)
	}
	return sink.Err()
}
