package cli

import (
	"context"
	"errors"

	flag "github.com/spf13/pflag"

	"github.com/wxtools/gribarc/pkg/gribfile"
)

const defaultListLimit = 100

var (
	errNegativeLimit  = errors.New("--limit must not be negative")
	errNegativeOffset = errors.New("--offset must not be negative")
)

// LsCmd returns the ls command.
func LsCmd(a *app) *Command {
	fs := flag.NewFlagSet("ls", flag.ContinueOnError)
	limit := fs.Int("limit", defaultListLimit, "Show at most N records, 0 shows all")
	offset := fs.Int("offset", 0, "Skip the first N records")

	return &Command{
		Flags: fs,
		Usage: "ls [flags] <file>",
		Short: "List the records in an archive",
		Long: `List the archive's records as ordinal, byte offset, byte length and
edition. The first listing scans the archive and persists an index
sidecar; repeated listings load it instead.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) != 1 {
				return errOneArchive
			}

			if *limit < 0 {
				return errNegativeLimit
			}

			if *offset < 0 {
				return errNegativeOffset
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

			return writeRecordTable(o, r.Index(), *offset, *limit)
		},
	}
}

// writeRecordTable prints records [offset, offset+limit) as a fixed
// width table. A limit of zero means no limit. The shell's ls reuses
// it.
func writeRecordTable(o *IO, idx *gribfile.Index, offset, limit int) error {
	end := idx.Len()
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	o.Printf("%8s %12s %12s %8s\n", "#", "OFFSET", "LENGTH", "EDITION")

	for n := offset; n < end; n++ {
		seg, err := idx.Segment(n)
		if err != nil {
			return err
		}

		o.Printf("%8d %12d %12d %8d\n", n, seg.Offset, seg.Length, seg.Edition)
	}

	if rest := idx.Len() - end; rest > 0 {
		o.Printf("... %d of %d records not shown\n", rest, idx.Len())
	}

	return nil
}
