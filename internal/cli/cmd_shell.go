package cli

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/wxtools/gribarc/pkg/gribfile"
)

// ShellCmd returns the shell command.
func ShellCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("shell", flag.ContinueOnError),
		Usage: "shell <file>",
		Short: "Inspect an archive interactively",
		Long: `Open an archive and inspect it from an interactive prompt with history
and completion. Type 'help' at the prompt for the available commands.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
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

			s := &shell{reader: r, io: o}

			return s.run()
		},
	}
}

// shell is the interactive inspector loop.
type shell struct {
	reader *gribfile.Reader
	io     *IO
	line   *liner.State
}

// historyFile returns the path to the prompt history file.
func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".gribarc_history")
}

func (s *shell) run() error {
	s.line = liner.NewLiner()
	defer s.line.Close()

	s.line.SetCtrlCAborts(true)
	s.line.SetCompleter(s.complete)

	if f, err := os.Open(historyFile()); err == nil {
		s.line.ReadHistory(f)
		f.Close()
	}

	s.io.Printf("%s: %d records\n", s.reader.Path(), s.reader.Len())
	s.io.Println("Type 'help' for available commands.")

	for {
		input, err := s.line.Prompt("gribarc> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				s.io.Println()

				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		s.line.AppendHistory(input)

		parts := strings.Fields(input)
		cmd, rest := strings.ToLower(parts[0]), parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			s.saveHistory()

			return nil

		case "help", "?":
			s.printHelp()

		case "ls", "list":
			s.cmdLs(rest)

		case "info":
			s.cmdInfo()

		case "len", "count":
			s.io.Println(s.reader.Len())

		case "get":
			s.cmdGet(rest)

		case "cat", "dump":
			s.cmdCat(rest)

		default:
			s.io.Printf("unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}

	s.saveHistory()

	return nil
}

// saveHistory persists prompt history to disk.
func (s *shell) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			s.line.WriteHistory(f)
			f.Close()
		}
	}
}

// complete provides tab completion for shell commands.
func (s *shell) complete(input string) []string {
	commands := []string{
		"ls", "list", "info", "len", "count",
		"get", "cat", "dump",
		"help", "exit", "quit", "q",
	}

	var matches []string

	for _, c := range commands {
		if strings.HasPrefix(c, strings.ToLower(input)) {
			matches = append(matches, c)
		}
	}

	return matches
}

func (s *shell) printHelp() {
	s.io.Println(`Commands:
  ls [offset [limit]]   List records
  info                  Archive summary
  len                   Number of records
  get <n> <key>         Read a metadata key from record n
  cat <n>               Hex preview of record n
  exit                  Leave the shell`)
}

func (s *shell) cmdLs(args []string) {
	offset, limit := 0, 0

	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 0 {
			s.io.Println("usage: ls [offset [limit]]")

			return
		}

		offset = v
	}

	if len(args) > 1 {
		v, err := strconv.Atoi(args[1])
		if err != nil || v < 0 {
			s.io.Println("usage: ls [offset [limit]]")

			return
		}

		limit = v
	}

	if err := writeRecordTable(s.io, s.reader.Index(), offset, limit); err != nil {
		s.io.Println("error:", err)
	}
}

func (s *shell) cmdInfo() {
	idx := s.reader.Index()

	perEdition := map[uint8]int{}

	var end int64

	for n := range idx.Len() {
		seg, err := idx.Segment(n)
		if err != nil {
			s.io.Println("error:", err)

			return
		}

		perEdition[seg.Edition]++

		if seg.End() > end {
			end = seg.End()
		}
	}

	s.io.Println("path=" + s.reader.Path())
	s.io.Printf("records=%d\n", idx.Len())
	s.io.Printf("data_end=%d\n", end)

	for _, ed := range []uint8{1, 2} {
		if perEdition[ed] > 0 {
			s.io.Printf("edition%d=%d\n", ed, perEdition[ed])
		}
	}
}

func (s *shell) cmdGet(args []string) {
	if len(args) != 2 {
		s.io.Println("usage: get <n> <key>")

		return
	}

	n, err := strconv.Atoi(args[0])
	if err != nil {
		s.io.Println("usage: get <n> <key>")

		return
	}

	f, err := s.reader.Field(n)
	if err != nil {
		s.io.Println("error:", err)

		return
	}

	v, err := f.Key(args[1], gribfile.KeyOptions{})
	if err != nil {
		s.io.Println("error:", err)

		return
	}

	s.io.Printf("%s=%v\n", args[1], v)
}

const catPreviewBytes = 96

func (s *shell) cmdCat(args []string) {
	if len(args) != 1 {
		s.io.Println("usage: cat <n>")

		return
	}

	n, err := strconv.Atoi(args[0])
	if err != nil {
		s.io.Println("usage: cat <n>")

		return
	}

	f, err := s.reader.Field(n)
	if err != nil {
		s.io.Println("error:", err)

		return
	}

	raw, err := f.Bytes()
	if err != nil {
		s.io.Println("error:", err)

		return
	}

	preview := raw
	if len(preview) > catPreviewBytes {
		preview = preview[:catPreviewBytes]
	}

	s.io.Printf("%d bytes\n", len(raw))
	s.io.Printf("%s", hex.Dump(preview))

	if len(raw) > len(preview) {
		s.io.Printf("... %d more bytes, 'gribarc cat' writes the full record\n", len(raw)-len(preview))
	}
}
