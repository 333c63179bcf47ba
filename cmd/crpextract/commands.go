package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"crp-extractor/internal/batch"
	"crp-extractor/internal/config"
	"crp-extractor/internal/crp"
	"crp-extractor/internal/organize"
	"crp-extractor/internal/output"
)

var cmdExtract = cli.Command{
	Name:      "extract",
	Usage:     "Extract one or more containers into a directory",
	ArgsUsage: "FILE...",
	Flags: []cli.Flag{
		&cli.PathFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output directory (default: config output_dir, else .)"},
		&cli.BoolFlag{Name: "dry-run", Usage: "Parse and decode without writing anything"},
	},
	Action: extract,
}

var cmdBatch = cli.Command{
	Name:      "batch",
	Usage:     "Extract many containers in parallel, one sub-directory each",
	ArgsUsage: "[FILE...]",
	Flags: []cli.Flag{
		&cli.PathFlag{Name: "list", Aliases: []string{"i"}, Usage: "File with one container path per line"},
		&cli.PathFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output directory (default: config output_dir, else .)"},
		&cli.PathFlag{Name: "manifest", Usage: "Manifest path (default: <out>/batch.json)"},
		&cli.BoolFlag{Name: "dry-run", Usage: "Parse and decode without writing anything"},
	},
	Action: runBatch,
}

var cmdOrganize = cli.Command{
	Name:      "organize",
	Usage:     "Sort extracted artifacts into texture/mesh/material/other",
	ArgsUsage: "DIR...",
	Flags: []cli.Flag{
		&cli.PathFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output directory (default: DIR/organized)"},
	},
	Action: runOrganize,
}

var cmdInspect = cli.Command{
	Name:      "inspect",
	Usage:     "Dump the header and a one-line summary per asset",
	ArgsUsage: "FILE",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "dump", Usage: "Dump every decoded asset"},
	},
	Action: inspect,
}

func outputDir(c *cli.Context, cfg config.Config) string {
	if c.Bool("dry-run") {
		return ""
	}
	if cfg.OutputDir == "" {
		return "."
	}
	return cfg.OutputDir
}

func extract(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("extract: no input files", 2)
	}
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	dec, err := cfg.Decrypter()
	if err != nil {
		return err
	}
	x := crp.NewExtractor(log, dec)
	dir := outputDir(c, cfg)

	failed := 0
	for _, path := range c.Args().Slice() {
		if err := extractFile(x, path, output.New(output.ContainerID(path), cfg.Output(dir)), log); err != nil {
			log.WithField("container", path).Error(err)
			failed++
		}
	}
	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d containers failed", failed, c.NArg()), 1)
	}
	return nil
}

func extractFile(x *crp.Extractor, path string, w *output.Writer, log logrus.FieldLogger) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return err
	}

	h, stats, err := x.Extract(f, fi.Size(), w)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"container": path,
		"package":   h.PackageName,
		"images":    stats.Images,
		"meshes":    stats.Meshes,
		"raw":       stats.Raw,
		"null":      stats.Null,
		"degraded":  stats.Degraded,
		"artifacts": len(w.Artifacts()),
	}).Info("extracted")
	if stats.Failed > 0 {
		return errors.Errorf("%d assets could not be written", stats.Failed)
	}
	return nil
}

func runBatch(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	dec, err := cfg.Decrypter()
	if err != nil {
		return err
	}

	paths := c.Args().Slice()
	if list := c.Path("list"); list != "" {
		listed, err := batch.ReadList(list)
		if err != nil {
			return err
		}
		paths = append(paths, listed...)
	}
	if len(paths) == 0 {
		return cli.Exit("batch: no containers given", 2)
	}

	dir := outputDir(c, cfg)
	log.Infof("Processing %d containers with %d workers", len(paths), cfg.Workers)
	start := time.Now()
	results := batch.Run(batch.Config{
		OutputDir: dir,
		Output:    cfg.Output(""),
		Decrypter: dec,
		Workers:   cfg.Workers,
		Log:       log,
		Progress:  2 * time.Second,
	}, paths)

	failed := batch.Failed(results)
	log.Infof("Done in %s: %d succeeded, %d failed", time.Since(start).Round(time.Millisecond), len(results)-failed, failed)

	manifest := c.Path("manifest")
	if manifest == "" && dir != "" {
		manifest = filepath.Join(dir, "batch.json")
	}
	if manifest != "" {
		if err := os.MkdirAll(filepath.Dir(manifest), 0755); err != nil {
			return err
		}
		if err := batch.WriteManifest(manifest, start, results); err != nil {
			return errors.Wrap(err, "write manifest")
		}
	}

	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d containers failed", failed, len(results)), 1)
	}
	return nil
}

func runOrganize(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("organize: no directories given", 2)
	}
	_, log, err := setup(c)
	if err != nil {
		return err
	}

	failed := 0
	for _, dir := range c.Args().Slice() {
		out := c.Path("out")
		if out != "" && c.NArg() > 1 {
			out = filepath.Join(out, filepath.Base(dir))
		}
		if _, err := organize.Run(dir, out, log.WithField("dir", dir)); err != nil {
			log.WithField("dir", dir).Error(err)
			failed++
		}
	}
	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d directories failed", failed, c.NArg()), 1)
	}
	return nil
}

// inspectSink prints instead of writing.
type inspectSink struct {
	dump bool
	cfg  *spew.ConfigState
}

func (s *inspectSink) Header(h *crp.Header) error {
	s.cfg.Dump(h)
	return nil
}

func (s *inspectSink) Asset(a *crp.Asset) error {
	fmt.Printf("[%d] %-24s %-10s %s\n", a.Index, a.Entry.Name, a.Entry.TypeName, a)
	if a.Err != nil {
		fmt.Printf("     error: %v\n", a.Err)
	}
	if s.dump {
		s.cfg.Dump(a)
	}
	return nil
}

func inspect(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("inspect: expected one file", 2)
	}
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	dec, err := cfg.Decrypter()
	if err != nil {
		return err
	}

	path := c.Args().First()
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return err
	}

	sink := &inspectSink{
		dump: c.Bool("dump"),
		cfg:  &spew.ConfigState{Indent: "  ", MaxDepth: 3, DisableMethods: true, DisablePointerAddresses: true},
	}
	_, stats, err := crp.NewExtractor(log, dec).Extract(f, fi.Size(), sink)
	if err != nil {
		return err
	}
	spew.Fdump(os.Stdout, stats)
	return nil
}
