package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"msx/archive"
	"msx/config"
	"msx/fonts"
	"msx/state"
	"msx/store"
)

func listProjects(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)

	db := cmd.Args().Get(0)
	if len(db) == 0 {
		return errors.New("no database has been specified")
	}
	s, err := store.OpenSQLite(db, env.Log)
	if err != nil {
		return err
	}
	defer s.Close()

	list, err := s.Projects(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tAUTHOR\tCHAPTERS")
	for _, p := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", p.ID, p.Title, p.Author, p.Chapters)
	}
	return w.Flush()
}

func listFonts(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)
	cfg := &env.Cfg.Export.PDF.Fonts

	catalog := &fonts.DirCatalog{Dirs: cfg.FontDirs(), All: cfg.All || cmd.Bool("all"), Log: env.Log.Named("fonts")}
	list, err := catalog.ListFonts(ctx)
	if err != nil {
		return err
	}
	env.Log.Info("Fonts found", zap.Strings("dirs", catalog.Dirs), zap.Int("count", len(list)))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tLABEL\tPDF FAMILY")
	for _, o := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\n", o.Key, o.Label, o.PDFFamily)
	}
	return w.Flush()
}

func inspectArchive(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)

	path := cmd.Args().Get(0)
	if len(path) == 0 {
		return errors.New("no archive has been specified")
	}
	rep, err := archive.Inspect(path)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSIZE\tMETHOD\tCRC32\tVALID")
	for _, e := range rep.Entries {
		method := "deflate"
		if e.Stored {
			method = "store"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%08x\t%t\n", e.Name, e.Size, method, e.CRC32, e.Valid)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	for _, p := range rep.Problems {
		env.Log.Warn("Archive problem", zap.String("archive", path), zap.String("problem", p))
	}
	if !rep.OK() {
		return fmt.Errorf("archive has %d problem(s)", len(rep.Problems))
	}
	env.Log.Info("Archive is valid", zap.String("archive", path), zap.Bool("epub", rep.EPUB), zap.Int("entries", len(rep.Entries)))
	return nil
}

func outputConfiguration(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)
	if cmd.Args().Len() > 1 {
		env.Log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
	}

	fname := cmd.Args().Get(0)

	var (
		err   error
		data  []byte
		state string
	)

	out := os.Stdout
	if len(fname) > 0 {
		out, err = os.Create(fname)
		if err != nil {
			return fmt.Errorf("unable to create destination file '%s': %w", fname, err)
		}
		defer out.Close()
	}

	if cmd.Bool("default") {
		state = "default"
		data, err = config.Prepare()
	} else {
		state = "actual"
		data, err = config.Dump(env.Cfg)
	}
	if err != nil {
		return fmt.Errorf("unable to get configuration: %w", err)
	}

	if len(fname) == 0 {
		fname = "STDOUT"
	}
	env.Log.Info("Outputting configuration", zap.String("state", state), zap.String("file", fname))

	if _, err = out.Write(data); err != nil {
		return fmt.Errorf("unable to write configuration: %w", err)
	}
	return nil
}
