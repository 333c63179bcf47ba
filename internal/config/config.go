package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"crp-extractor/internal/crypto"
	"crp-extractor/internal/output"
	"crp-extractor/internal/preview"
	"crp-extractor/internal/texture"
)

// Config holds output settings and the author decryption key.
type Config struct {
	// Paths
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// Artifact settings
	ImageFormat string   `json:"image_format" yaml:"image_format"`
	MeshFormats []string `json:"mesh_formats" yaml:"mesh_formats"`
	PreviewSize int      `json:"preview_size" yaml:"preview_size"`
	WriteHeader *bool    `json:"write_header" yaml:"write_header"`
	DumpNull    bool     `json:"dump_null" yaml:"dump_null"`

	// AuthorKey is the hex encoded XOR key for the author field, chained
	// from AuthorSeed by AuthorStep. An empty key leaves the field as stored.
	AuthorKey  string `json:"author_key" yaml:"author_key"`
	AuthorSeed uint8  `json:"author_seed" yaml:"author_seed"`
	AuthorStep uint8  `json:"author_step" yaml:"author_step"`

	Workers int  `json:"workers" yaml:"workers"`
	Verbose bool `json:"verbose" yaml:"verbose"`
}

// Load reads a JSON or YAML config file, chosen by extension.
// Fields not set in the file keep their zero values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config: read %s", path)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return Config{}, errors.Wrapf(err, "config: parse %s", path)
	}
	return cfg, nil
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	OutputDir   string
	ImageFormat string
	MeshFormats []string
	PreviewSize int
	AuthorKey   string
	Workers     int
	Verbose     bool
	NoHeader    bool
	DumpNull    bool

	// AuthorSeed and AuthorStep are nil when the flag was not given.
	AuthorSeed *uint8
	AuthorStep *uint8
}

// Resolve applies flag overrides, then fills empty fields with defaults.
// CLI flags take priority when non-zero/non-empty.
func (c *Config) Resolve(flags Flags) {
	if flags.OutputDir != "" {
		c.OutputDir = flags.OutputDir
	}
	if flags.ImageFormat != "" {
		c.ImageFormat = flags.ImageFormat
	}
	if len(flags.MeshFormats) > 0 {
		c.MeshFormats = flags.MeshFormats
	}
	if flags.PreviewSize > 0 {
		c.PreviewSize = flags.PreviewSize
	}
	if flags.AuthorKey != "" {
		c.AuthorKey = flags.AuthorKey
	}
	if flags.AuthorSeed != nil {
		c.AuthorSeed = *flags.AuthorSeed
	}
	if flags.AuthorStep != nil {
		c.AuthorStep = *flags.AuthorStep
	}
	if flags.Workers > 0 {
		c.Workers = flags.Workers
	}
	if flags.Verbose {
		c.Verbose = true
	}
	if flags.DumpNull {
		c.DumpNull = true
	}
	if flags.NoHeader {
		off := false
		c.WriteHeader = &off
	}

	if c.ImageFormat == "" {
		c.ImageFormat = string(texture.OutputPNG)
	}
	if len(c.MeshFormats) == 0 {
		c.MeshFormats = []string{output.MeshOBJ}
	}
	if c.WriteHeader == nil {
		on := true
		c.WriteHeader = &on
	}
	if c.PreviewSize <= 0 {
		c.PreviewSize = preview.DefaultOptions.Size
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if _, err := texture.ParseOutputFormat(c.ImageFormat); err != nil {
		return errors.Wrap(err, "config: image_format")
	}
	for _, f := range c.MeshFormats {
		switch strings.ToLower(f) {
		case output.MeshOBJ, output.MeshGLB, output.MeshPreview:
		default:
			return errors.Errorf("config: mesh_formats: unknown format %q", f)
		}
	}
	if _, err := c.Decrypter(); err != nil {
		return errors.Wrap(err, "config: author_key")
	}
	return nil
}

// Decrypter returns the author decrypter for the configured key.
func (c *Config) Decrypter() (crypto.Decrypter, error) {
	return crypto.NewXOR(c.AuthorKey, c.AuthorSeed, c.AuthorStep)
}

// Output returns writer options rooted at dir. An empty dir means dry run.
func (c *Config) Output(dir string) output.Options {
	format, _ := texture.ParseOutputFormat(c.ImageFormat)
	return output.Options{
		Dir:         dir,
		ImageFormat: format,
		MeshFormats: c.MeshFormats,
		Preview:     previewOptions(c.PreviewSize),
		WriteHeader: c.WriteHeader == nil || *c.WriteHeader,
		DumpNull:    c.DumpNull,
	}
}

func previewOptions(size int) preview.Options {
	opts := preview.DefaultOptions
	if size > 0 {
		opts.Size = size
	}
	return opts
}
