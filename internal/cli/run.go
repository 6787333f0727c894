package cli

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Argument errors shared by the commands.
var (
	errMissingArchive = errors.New("missing archive argument")
	errOneArchive     = errors.New("expected exactly one archive")
)

// app carries the state every command closes over. The config and
// logger are filled in by Run before any Exec fires.
type app struct {
	cfg Config
	log *zap.Logger
}

func (a *app) commands() []*Command {
	return []*Command{
		IndexCmd(a),
		LsCmd(a),
		CatCmd(a),
		ShellCmd(a),
		PrintConfigCmd(a),
	}
}

// Run is the main entry point. Returns the process exit code.
func Run(_ io.Reader, out, errOut io.Writer, args []string, env map[string]string) int {
	o := NewIO(out, errOut)

	globals := flag.NewFlagSet("gribarc", flag.ContinueOnError)
	globals.SetInterspersed(false)
	globals.SetOutput(io.Discard)

	cwd := globals.StringP("cwd", "C", "", "Run as if started in this directory")
	configPath := globals.StringP("config", "c", "", "Use this config file instead of "+ConfigFileName)
	indexDir := globals.String("index-dir", "", "Store index sidecars under this directory")
	verbose := globals.BoolP("verbose", "v", false, "Debug logging to stderr")

	a := &app{log: zap.NewNop()}
	cmds := a.commands()

	if len(args) < 2 {
		o.Println(usageText(globals, cmds))

		return 0
	}

	if err := globals.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			o.Println(usageText(globals, cmds))

			return 0
		}

		o.ErrPrintln("error:", err)
		o.ErrPrintln()
		o.ErrPrintln(usageText(globals, cmds))

		return 1
	}

	rest := globals.Args()
	if len(rest) == 0 {
		o.Println(usageText(globals, cmds))

		return 0
	}

	cfg, err := LoadConfig(LoadConfigInput{
		WorkDirOverride:  *cwd,
		ConfigPath:       *configPath,
		IndexDirOverride: *indexDir,
		Env:              env,
	})
	if err != nil {
		o.ErrPrintln("error:", err)

		return 1
	}

	a.cfg = cfg

	if *verbose {
		core := zapcore.NewCore(
			zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
			zapcore.AddSync(errOut),
			zapcore.DebugLevel,
		)
		a.log = zap.New(core)

		defer func() { _ = a.log.Sync() }()
	}

	name := rest[0]

	if name == "help" || name == "-h" || name == "--help" {
		return runHelp(o, globals, cmds, rest[1:])
	}

	for _, c := range cmds {
		if c.Name() == name {
			return c.Run(context.Background(), o, rest[1:])
		}
	}

	o.ErrPrintln("error: unknown command:", name)
	o.ErrPrintln()
	o.ErrPrintln(usageText(globals, cmds))

	return 1
}

func runHelp(o *IO, globals *flag.FlagSet, cmds []*Command, args []string) int {
	if len(args) == 0 {
		o.Println(usageText(globals, cmds))

		return 0
	}

	for _, c := range cmds {
		if c.Name() == args[0] {
			c.PrintHelp(o)

			return 0
		}
	}

	o.ErrPrintln("error: unknown command:", args[0])

	return 1
}

func usageText(globals *flag.FlagSet, cmds []*Command) string {
	var b strings.Builder

	b.WriteString("gribarc - indexed random access for GRIB archives\n")
	b.WriteString("\n")
	b.WriteString("Usage: gribarc [global flags] <command> [args]\n")
	b.WriteString("\n")
	b.WriteString("Global flags:\n")
	b.WriteString(globals.FlagUsages())
	b.WriteString("\n")
	b.WriteString("Commands:\n")

	for _, c := range cmds {
		b.WriteString(c.HelpLine())
		b.WriteString("\n")
	}

	b.WriteString("  help [command]             Show help for a command\n")
	b.WriteString("\n")
	b.WriteString("Run 'gribarc <command> --help' for command details.")

	return b.String()
}

// absFrom resolves path against the effective working directory. The
// -C flag changes the logical directory without a chdir, so relative
// paths cannot go through the process cwd.
func absFrom(cwd, path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(cwd, path)
}
