package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crp-extractor/internal/crypto"
	"crp-extractor/internal/texture"
)

func writeConfig(t *testing.T, name, body string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "cfg.json", `{"output_dir":"out","image_format":"webp","workers":3,"write_header":false}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "out", cfg.OutputDir)
	assert.Equal(t, "webp", cfg.ImageFormat)
	assert.Equal(t, 3, cfg.Workers)
	require.NotNil(t, cfg.WriteHeader)
	assert.False(t, *cfg.WriteHeader)
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "cfg.yaml", "mesh_formats: [obj, glb]\nauthor_key: \"0a0b\"\ndump_null: true\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"obj", "glb"}, cfg.MeshFormats)
	assert.Equal(t, "0a0b", cfg.AuthorKey)
	assert.True(t, cfg.DumpNull)
	assert.Nil(t, cfg.WriteHeader)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "bad.json", "{"))
	assert.Error(t, err)
}

func TestResolveDefaults(t *testing.T) {
	var cfg Config
	cfg.Resolve(Flags{})
	assert.Equal(t, "png", cfg.ImageFormat)
	assert.Equal(t, []string{"obj"}, cfg.MeshFormats)
	assert.Equal(t, runtime.NumCPU(), cfg.Workers)
	require.NotNil(t, cfg.WriteHeader)
	assert.True(t, *cfg.WriteHeader)
	assert.NoError(t, cfg.Validate())

	opts := cfg.Output("")
	assert.Equal(t, texture.OutputPNG, opts.ImageFormat)
	assert.True(t, opts.WriteHeader)
}

func TestResolveFlagsOverride(t *testing.T) {
	cfg := Config{OutputDir: "file", Workers: 2, ImageFormat: "png"}
	cfg.Resolve(Flags{OutputDir: "flag", Workers: 8, ImageFormat: "webp", NoHeader: true})
	assert.Equal(t, "flag", cfg.OutputDir)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "webp", cfg.ImageFormat)
	assert.False(t, *cfg.WriteHeader)
	assert.False(t, cfg.Output("x").WriteHeader)
}

func TestValidate(t *testing.T) {
	cfg := Config{ImageFormat: "gif"}
	cfg.Resolve(Flags{})
	assert.Error(t, cfg.Validate())

	cfg = Config{MeshFormats: []string{"fbx"}}
	cfg.Resolve(Flags{})
	assert.Error(t, cfg.Validate())

	cfg = Config{AuthorKey: "zz"}
	cfg.Resolve(Flags{})
	assert.Error(t, cfg.Validate())
}

func TestDecrypter(t *testing.T) {
	cfg := Config{}
	dec, err := cfg.Decrypter()
	require.NoError(t, err)
	assert.IsType(t, crypto.Plain{}, dec)

	cfg.AuthorKey = "0102"
	dec, err = cfg.Decrypter()
	require.NoError(t, err)
	assert.IsType(t, &crypto.XOR{}, dec)
}

func TestAuthorSeedAndStep(t *testing.T) {
	path := writeConfig(t, "cfg.yaml", "author_key: \"0102\"\nauthor_seed: 94\nauthor_step: 61\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	step := uint8(3)
	cfg.Resolve(Flags{AuthorStep: &step})
	dec, err := cfg.Decrypter()
	require.NoError(t, err)
	assert.Equal(t, &crypto.XOR{Key: []byte{1, 2}, Seed: 94, Step: 3}, dec)
}
