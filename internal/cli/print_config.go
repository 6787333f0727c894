package cli

import (
	"context"

	flag "github.com/spf13/pflag"
)

// PrintConfigCmd returns the print-config command.
func PrintConfigCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("print-config", flag.ContinueOnError),
		Usage: "print-config",
		Short: "Show resolved configuration",
		Long:  "Display the effective configuration and which files it was loaded from.",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			return execPrintConfig(o, a.cfg)
		},
	}
}

func execPrintConfig(o *IO, cfg Config) error {
	o.Println("effective_cwd=" + cfg.EffectiveCwd)

	if cfg.IndexDirAbs != "" {
		o.Println("index_dir=" + cfg.IndexDirAbs)
	} else {
		o.Println("index_dir=(next to each archive)")
	}

	o.Println("handle_policy=" + cfg.HandlePolicy)
	o.Printf("handle_cache_size=%d\n", cfg.HandleCacheSize)
	o.Println("field_retention=" + cfg.FieldRetention)

	o.Println("")
	o.Println("# sources")

	if cfg.Sources.Global == "" && cfg.Sources.Project == "" {
		o.Println("(defaults only)")
	} else {
		if cfg.Sources.Global != "" {
			o.Println("global_config=" + cfg.Sources.Global)
		}

		if cfg.Sources.Project != "" {
			o.Println("project_config=" + cfg.Sources.Project)
		}
	}

	return nil
}
