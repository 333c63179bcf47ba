package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"crp-extractor/internal/config"
)

func main() {
	app := &cli.App{
		Name:  "crpextract",
		Usage: "Extract textures, meshes and raw assets from CRP containers",
		Flags: []cli.Flag{
			&cli.PathFlag{Name: "config", Aliases: []string{"c"}, Usage: "Path to a JSON or YAML config file"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "Log every asset"},
			&cli.StringFlag{Name: "author-key", Usage: "Hex XOR key for the author field"},
			&cli.UintFlag{Name: "author-seed", Usage: "Initial XOR chain byte for the author field"},
			&cli.UintFlag{Name: "author-step", Usage: "XOR chain step for the author field"},
			&cli.StringFlag{Name: "image-format", Usage: "png or webp (default: png)"},
			&cli.StringSliceFlag{Name: "mesh-format", Usage: "obj, glb and/or preview (default: obj)"},
			&cli.IntFlag{Name: "preview-size", Usage: "Mesh preview edge in pixels (default: 256)"},
			&cli.IntFlag{Name: "workers", Usage: "Number of worker goroutines (default: NumCPU)"},
			&cli.BoolFlag{Name: "no-header", Usage: "Do not write {id}_header.json"},
			&cli.BoolFlag{Name: "dump-null", Usage: "Write the bytes of absent assets"},
		},
		Commands: []*cli.Command{
			&cmdExtract,
			&cmdBatch,
			&cmdOrganize,
			&cmdInspect,
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

// byteFlag returns the flag value when it was given on the command line.
func byteFlag(c *cli.Context, name string) *uint8 {
	if !c.IsSet(name) {
		return nil
	}
	v := uint8(c.Uint(name))
	return &v
}

// setup loads the config file, applies global flags and configures logging.
func setup(c *cli.Context) (config.Config, *logrus.Logger, error) {
	var cfg config.Config
	if path := c.Path("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, nil, err
		}
	}

	// CLI flags override config file
	cfg.Resolve(config.Flags{
		OutputDir:   c.Path("out"),
		ImageFormat: c.String("image-format"),
		MeshFormats: c.StringSlice("mesh-format"),
		PreviewSize: c.Int("preview-size"),
		AuthorKey:   c.String("author-key"),
		AuthorSeed:  byteFlag(c, "author-seed"),
		AuthorStep:  byteFlag(c, "author-step"),
		Workers:     c.Int("workers"),
		Verbose:     c.Bool("verbose"),
		NoHeader:    c.Bool("no-header"),
		DumpNull:    c.Bool("dump-null"),
	})
	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if cfg.Verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return cfg, log, nil
}
