package maincmd

import (
	"github.com/caarlos0/env/v6"
	"github.com/mna/lethec/lang/lexer"
)

// EnvConfig is the environment-driven half of this tool's configuration,
// layered on top of the `mainer`-parsed command-line flags: a front-end
// compiler has a handful of settings (spec §4.1's lexer mode, extra
// import search paths) that make more sense as ambient environment
// configuration for CI/build-pipeline invocations than as a flag typed
// out on every invocation, the same "env vars as ambient config" niche
// the teacher's go.mod already carries `github.com/caarlos0/env` for but
// never exercises (see DESIGN.md).
type EnvConfig struct {
	// DoubleMode selects the lexer's 'double' numeric mode (spec §4.1:
	// unsuffixed "1.2" literals are double instead of float).
	DoubleMode bool `env:"DOUBLE_MODE" envDefault:"false"`

	// IncludeDirs are extra search directories consulted, after the
	// importing file's own directory, when resolving `import "name"`
	// directives (internal/compilerapi.WithIncludeDirs).
	IncludeDirs []string `env:"INCLUDE_DIRS" envSeparator:":"`
}

// loadEnvConfig parses LETHEC_-prefixed environment variables into an
// EnvConfig, defaulting every field when unset.
func loadEnvConfig() (EnvConfig, error) {
	var cfg EnvConfig
	err := env.ParseWithOptions(&cfg, env.Options{Prefix: "LETHEC_"})
	return cfg, err
}

// lexerMode maps the parsed config to the lang/lexer.Mode it selects.
func (cfg EnvConfig) lexerMode() lexer.Mode {
	if cfg.DoubleMode {
		return lexer.Double
	}
	return lexer.Default
}
