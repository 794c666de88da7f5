package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"

	"github.com/davecgh/go-spew/spew"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"flatcodec/internal/composer"
	"flatcodec/internal/event"
	"flatcodec/internal/filewalker"
	"flatcodec/internal/linejson"
	"flatcodec/internal/model"
	"flatcodec/internal/parser"
	"flatcodec/internal/schema"
	"flatcodec/internal/schemaload"
	"flatcodec/internal/store"
	"flatcodec/internal/worker"
)

var dumper = spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, DisableCapacities: true, SortKeys: true}

func (a *app) parseCmd() *cobra.Command {
	var schemaPath, outPath string
	var dump bool
	cmd := &cobra.Command{
		Use:   "parse <file|dir>...",
		Short: "Parse input files and write their lines as JSON lines",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := schemaload.Load(schemaPath)
			if err != nil {
				return err
			}
			out, err := openOutput(cmd, outPath)
			if err != nil {
				return err
			}
			defer out.Close()
			if err := a.runParse(cmd.Context(), s, args, out, dump); err != nil {
				return err
			}
			return out.Close()
		},
	}
	cmd.Flags().StringVar(&schemaPath, "schema", "", "HCL schema file")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&dump, "dump", false, "dump parsed lines in Go syntax instead of JSON")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

// parsed is the outcome of one file session.
type parsed struct {
	doc      *model.Document
	warnings int
	errors   int
}

func (a *app) parseFile(ctx context.Context, s *schema.Schema, path string) (parsed, error) {
	cfg, err := a.cfg.ParseConfig(path)
	if err != nil {
		return parsed{}, err
	}
	p, err := parser.New(s, cfg)
	if err != nil {
		return parsed{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return parsed{}, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	rec := &event.Recorder{}
	_, err = p.Parse(ctx, f, event.Multi(rec, event.LogListener{Source: path}))
	res := parsed{
		doc:      rec.Document(),
		warnings: rec.Count(event.SeverityWarning),
		errors:   rec.Count(event.SeverityError) + rec.Count(event.SeverityFatal),
	}
	return res, err
}

func (a *app) runParse(parent context.Context, s *schema.Schema, roots []string, out io.Writer, dump bool) error {
	ctx, cancel := setupContext(parent)
	defer cancel()

	files, err := filewalker.NewWalker(a.cfg.InputExts...).Walk(roots...)
	if err != nil {
		return err
	}

	pool := worker.NewPool(a.cfg.WorkerCount, func(ctx context.Context, fe filewalker.FileEntry) (parsed, error) {
		return a.parseFile(ctx, s, fe.Path)
	})
	tasks := pool.Execute(ctx, files)

	w := linejson.NewWriter(out)
	var lines int64
	failed := 0
	for _, task := range tasks {
		if task.Err != nil {
			failed++
		}
		if task.Result.doc == nil {
			continue
		}
		for l := range task.Result.doc.Lines() {
			if dump {
				dumper.Fdump(out, l)
				continue
			}
			if err := w.Write(l); err != nil {
				return err
			}
		}
		lines += int64(task.Result.doc.Len())
		log.Info().
			Str("file", task.Input.Path).
			Int("lines", task.Result.doc.Len()).
			Int("warnings", task.Result.warnings).
			Int("errors", task.Result.errors).
			Msg("File parsed")
	}

	log.Info().Int("files", len(files)).Int64("lines", lines).Int("failed", failed).Msg("Parse complete")
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}

func (a *app) composeCmd() *cobra.Command {
	var schemaPath, outPath string
	cmd := &cobra.Command{
		Use:   "compose <lines.jsonl|->",
		Short: "Write JSON lines as text under a schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupContext(cmd.Context())
			defer cancel()

			s, err := schemaload.Load(schemaPath)
			if err != nil {
				return err
			}
			in, err := openInput(cmd, args[0])
			if err != nil {
				return err
			}
			defer in.Close()
			out, err := openOutput(cmd, outPath)
			if err != nil {
				return err
			}
			defer out.Close()

			cfg, err := a.cfg.ComposeConfig(outPath)
			if err != nil {
				return err
			}
			c, err := composer.New(s, out, cfg, event.LogListener{Source: outPath})
			if err != nil {
				return err
			}

			lines, readErr := jsonLines(in)
			n, err := c.Compose(ctx, lines)
			if err != nil {
				return err
			}
			if err := readErr(); err != nil {
				return err
			}
			log.Info().Int64("lines", n).Str("output", outPath).Msg("Compose complete")
			return out.Close()
		},
	}
	cmd.Flags().StringVar(&schemaPath, "schema", "", "HCL schema file")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "output file (default stdout)")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

// jsonLines streams the lines of r. The returned func reports the error
// that ended the stream early, if any.
func jsonLines(r io.Reader) (iter.Seq[*model.Line], func() error) {
	jr := linejson.NewReader(r)
	var readErr error
	seq := func(yield func(*model.Line) bool) {
		for {
			l, err := jr.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				readErr = err
				return
			}
			if !yield(l) {
				return
			}
		}
	}
	return seq, func() error { return readErr }
}

func (a *app) convertCmd() *cobra.Command {
	var fromPath, toPath, outPath string
	cmd := &cobra.Command{
		Use:   "convert <input|->",
		Short: "Re-layout a text file from one schema to another",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupContext(cmd.Context())
			defer cancel()

			from, err := schemaload.Load(fromPath)
			if err != nil {
				return err
			}
			to, err := schemaload.Load(toPath)
			if err != nil {
				return err
			}
			in, err := openInput(cmd, args[0])
			if err != nil {
				return err
			}
			defer in.Close()
			out, err := openOutput(cmd, outPath)
			if err != nil {
				return err
			}
			defer out.Close()

			pcfg, err := a.cfg.ParseConfig(args[0])
			if err != nil {
				return err
			}
			ccfg, err := a.cfg.ComposeConfig(outPath)
			if err != nil {
				return err
			}
			p, err := parser.New(from, pcfg)
			if err != nil {
				return err
			}
			logs := event.LogListener{Source: args[0]}
			c, err := composer.New(to, out, ccfg, logs)
			if err != nil {
				return err
			}

			n, err := convert(ctx, p, c, in, logs)
			if err != nil {
				return err
			}
			log.Info().Int64("lines", n).Str("input", args[0]).Msg("Convert complete")
			return out.Close()
		},
	}
	cmd.Flags().StringVar(&fromPath, "from", "", "HCL schema of the input")
	cmd.Flags().StringVar(&toPath, "to", "", "HCL schema of the output")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "output file (default stdout)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

// convert composes every parsed line as soon as it is emitted.
func convert(ctx context.Context, p *parser.Parser, c *composer.Composer, in io.Reader, logs event.Listener) (int64, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	l := event.Funcs{
		OnLine: func(e event.LineParsedEvent) {
			if ctx.Err() != nil {
				return
			}
			if err := c.WriteLine(e.Line); err != nil {
				cancel(err)
			}
		},
		OnError: logs.ErrorOccurred,
	}
	_, err := p.Parse(ctx, in, l)
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return c.Written(), cause
	}
	return c.Written(), err
}

func (a *app) loadCmd() *cobra.Command {
	var schemaPath, source string
	var replace bool
	cmd := &cobra.Command{
		Use:   "load <file>",
		Short: "Parse a file into the PostgreSQL line store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupContext(cmd.Context())
			defer cancel()

			s, err := schemaload.Load(schemaPath)
			if err != nil {
				return err
			}
			if source == "" {
				source = filepath.Base(args[0])
			}
			pcfg, err := a.cfg.ParseConfig(source)
			if err != nil {
				return err
			}
			p, err := parser.New(s, pcfg)
			if err != nil {
				return err
			}
			in, err := openInput(cmd, args[0])
			if err != nil {
				return err
			}
			defer in.Close()

			pool, err := store.Connect(ctx, a.cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()
			st := store.New(pool, a.cfg.Table)
			if err := st.EnsureSchema(ctx); err != nil {
				return err
			}
			if replace {
				n, err := st.Delete(ctx, source)
				if err != nil {
					return err
				}
				log.Info().Int64("rows", n).Str("source", source).Msg("Removed previous lines")
			}

			bl := store.NewBatchListener(ctx, st, source, a.cfg.BatchSize)
			bl.Next = event.LogListener{Source: source}
			if _, err := p.Parse(ctx, in, bl); err != nil {
				return err
			}
			if err := bl.Flush(); err != nil {
				return err
			}
			log.Info().Int64("lines", bl.Stored()).Str("source", source).Msg("Load complete")
			return nil
		},
	}
	cmd.Flags().StringVar(&schemaPath, "schema", "", "HCL schema file")
	cmd.Flags().StringVar(&source, "source", "", "name stored with the lines (default file name)")
	cmd.Flags().BoolVar(&replace, "replace", false, "delete lines already stored for the source")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

func (a *app) exportCmd() *cobra.Command {
	var schemaPath, source, outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Compose the stored lines of a source as text",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupContext(cmd.Context())
			defer cancel()

			s, err := schemaload.Load(schemaPath)
			if err != nil {
				return err
			}
			pool, err := store.Connect(ctx, a.cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()
			doc, err := store.New(pool, a.cfg.Table).Lines(ctx, source)
			if err != nil {
				return err
			}

			out, err := openOutput(cmd, outPath)
			if err != nil {
				return err
			}
			defer out.Close()
			cfg, err := a.cfg.ComposeConfig(source)
			if err != nil {
				return err
			}
			c, err := composer.New(s, out, cfg, event.LogListener{Source: source})
			if err != nil {
				return err
			}
			n, err := c.ComposeDocument(ctx, doc)
			if err != nil {
				return err
			}
			log.Info().Int64("lines", n).Str("source", source).Msg("Export complete")
			return out.Close()
		},
	}
	cmd.Flags().StringVar(&schemaPath, "schema", "", "HCL schema file")
	cmd.Flags().StringVar(&source, "source", "", "source name used at load time")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "output file (default stdout)")
	_ = cmd.MarkFlagRequired("schema")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}
