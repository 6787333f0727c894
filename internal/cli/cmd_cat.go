package cli

import (
	"context"
	"errors"

	flag "github.com/spf13/pflag"

	"github.com/wxtools/gribarc/pkg/gribfile"
)

var errRecordRequired = errors.New("missing required flag: --record")

// CatCmd returns the cat command.
func CatCmd(a *app) *Command {
	fs := flag.NewFlagSet("cat", flag.ContinueOnError)
	record := fs.IntP("record", "n", 0, "Record ordinal to write")

	return &Command{
		Flags: fs,
		Usage: "cat -n <record> <file>",
		Short: "Write one record's raw bytes to stdout",
		Long: `Write the raw bytes of a single record to stdout, suitable for piping
into other GRIB tools. Records are addressed by ordinal as shown by ls.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			if !fs.Changed("record") {
				return errRecordRequired
			}

			if len(args) != 1 {
				return errOneArchive
			}

			opts, err := a.cfg.ReaderOptions(a.log)
			if err != nil {
				return err
			}

			r, err := gribfile.Open(absFrom(a.cfg.EffectiveCwd, args[0]), opts)
			if err != nil {
				return err
			}
			defer func() { _ = r.Close() }()

			f, err := r.Field(*record)
			if err != nil {
				return err
			}

			raw, err := f.Bytes()
			if err != nil {
				return err
			}

			_, err = o.Write(raw)

			return err
		},
	}
}
