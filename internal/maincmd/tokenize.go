package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/lethec/lang/diag"
	"github.com/mna/lethec/lang/lexer"
	"github.com/mna/lethec/lang/token"
	"github.com/mna/mainer"
)

func (c *Cmd) Tokenize(ctx context.Context, stdio mainer.Stdio, args []string) error {
	cfg, err := loadEnvConfig()
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}
	return tokenizeFilesMode(ctx, stdio, cfg.lexerMode(), args...)
}

// TokenizeFiles runs the lexer phase alone on each file and prints one
// line per token, mirroring the teacher's tokenize command but against
// lang/lexer instead of lang/scanner.
func TokenizeFiles(ctx context.Context, stdio mainer.Stdio, files ...string) error {
	return tokenizeFilesMode(ctx, stdio, lexer.Default, files...)
}

func tokenizeFilesMode(ctx context.Context, stdio mainer.Stdio, mode lexer.Mode, files ...string) error {
	sink := &diag.Sink{}
	for _, fname := range files {
		src, err := os.ReadFile(fname)
		if err != nil {
			fmt.Fprintln(stdio.Stderr, err)
			sink.Add(diag.Lex, token.Location{File: fname}, err.Error())
			continue
		}

		lx := lexer.New(fname, src, sink, mode)
		for {
			tt, val, loc := lx.Scan()
			fmt.Fprintf(stdio.Stdout, "%s: %s", loc, tt)
			if val.Text != "" {
				fmt.Fprintf(stdio.Stdout, " %q", val.Text)
			}
			fmt.Fprintln(stdio.Stdout)
			if tt == token.EOF {
				break
			}
		}
	}

	sink.Sort()
	for _, e := range sink.Errors {
		fmt.Fprintln(stdio.Stderr, e)
	}
	return sink.Err()
}
