package cli

import (
	"context"
	"errors"
	"fmt"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/wxtools/gribarc/pkg/gribfile"
)

var errIndexIncomplete = errors.New("not all archives were indexed")

// IndexCmd returns the index command.
func IndexCmd(a *app) *Command {
	fs := flag.NewFlagSet("index", flag.ContinueOnError)
	force := fs.Bool("force", false, "Rescan even when a current sidecar exists")
	dir := fs.String("dir", "", "Write sidecars under this directory")

	return &Command{
		Flags: fs,
		Usage: "index [flags] <file>...",
		Short: "Scan archives and persist index sidecars",
		Long: `Scan each archive and write its index sidecar, so later opens skip the
scan. Without --force an archive whose sidecar is already current is
left alone. A failing archive is reported and the rest are still
indexed.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) == 0 {
				return errMissingArchive
			}

			indexDir := a.cfg.IndexDirAbs
			if *dir != "" {
				indexDir = absFrom(a.cfg.EffectiveCwd, *dir)
			}

			failed := 0

			for _, arg := range args {
				path := absFrom(a.cfg.EffectiveCwd, arg)

				n, err := writeIndex(path, indexDir, *force, a.log)
				if err != nil {
					o.ErrPrintln("error:", arg+":", err)

					failed++

					continue
				}

				o.Printf("%s: %d records -> %s\n", arg, n, gribfile.IndexCachePath(indexDir, path))
			}

			if failed > 0 {
				return fmt.Errorf("%w: %d of %d failed", errIndexIncomplete, failed, len(args))
			}

			return nil
		},
	}
}

// writeIndex brings the sidecar for path up to date and reports the
// record count. The non-forced path goes through Open, which loads a
// current sidecar instead of rescanning and persists one otherwise.
func writeIndex(path, indexDir string, force bool, log *zap.Logger) (int, error) {
	if force {
		idx, err := gribfile.BuildIndex(path)
		if err != nil {
			return 0, err
		}

		saveErr := gribfile.SaveIndexCache(gribfile.IndexCachePath(indexDir, path), idx)
		if saveErr != nil {
			return 0, saveErr
		}

		return idx.Len(), nil
	}

	r, err := gribfile.Open(path, gribfile.Options{IndexDir: indexDir, Logger: log})
	if err != nil {
		return 0, err
	}

	n := r.Len()

	return n, r.Close()
}
