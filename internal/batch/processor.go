package batch

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"crp-extractor/internal/crp"
	"crp-extractor/internal/crypto"
	"crp-extractor/internal/output"
)

// Config holds all shared resources for a batch run.
type Config struct {
	// OutputDir receives one sub-directory per container. Empty means dry run.
	OutputDir string
	Output    output.Options
	Decrypter crypto.Decrypter
	Workers   int
	Log       logrus.FieldLogger
	// Progress is the interval between progress lines; zero disables them.
	Progress time.Duration
}

// Result holds the outcome of processing one container.
type Result struct {
	Path      string     `json:"path"`
	ID        string     `json:"id"`
	Success   bool       `json:"success"`
	Error     string     `json:"error,omitempty"`
	Stats     *crp.Stats `json:"stats,omitempty"`
	Artifacts int        `json:"artifacts"`
}

// Failed counts unsuccessful results.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.Success {
			n++
		}
	}
	return n
}

// Run extracts all containers using a worker pool. Every worker opens its
// own file handle, so cursors are never shared.
func Run(cfg Config, paths []string) []Result {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		cfg.Log = l
	}
	x := crp.NewExtractor(cfg.Log, cfg.Decrypter)

	total := len(paths)
	results := make([]Result, total)
	var processed atomic.Int64

	start := time.Now()

	// Progress reporter
	done := make(chan struct{})
	if cfg.Progress > 0 {
		go func() {
			ticker := time.NewTicker(cfg.Progress)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					p := processed.Load()
					if p > 0 {
						rate := float64(p) / time.Since(start).Seconds()
						cfg.Log.Infof("[%d/%d] %.1f containers/sec", p, total, rate)
					}
				}
			}
		}()
	}

	// Worker pool
	jobs := make(chan int, cfg.Workers*2)
	var wg sync.WaitGroup

	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = processContainer(cfg, x, paths[idx])
				processed.Add(1)
			}
		}()
	}

	for i := range paths {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
	close(done)

	return results
}

func processContainer(cfg Config, x *crp.Extractor, path string) (res Result) {
	res = Result{Path: path, ID: output.ContainerID(path)}
	log := cfg.Log.WithField("container", path)
	defer func() {
		if p := recover(); p != nil {
			res.Success = false
			res.Error = errors.Errorf("aborted: %v", p).Error()
		}
		if !res.Success {
			log.Error(res.Error)
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		res.Error = err.Error()
		return res
	}

	opts := cfg.Output
	opts.Dir = ""
	if cfg.OutputDir != "" {
		opts.Dir = filepath.Join(cfg.OutputDir, res.ID)
	}
	w := output.New(res.ID, opts)

	_, stats, err := x.Extract(f, fi.Size(), w)
	res.Stats = stats
	res.Artifacts = len(w.Artifacts())
	if err != nil {
		res.Error = err.Error()
		return res
	}
	if stats.Failed > 0 {
		res.Error = errors.Errorf("%d assets could not be written", stats.Failed).Error()
		return res
	}

	log.WithFields(logrus.Fields{
		"assets":    stats.Assets,
		"degraded":  stats.Degraded,
		"artifacts": res.Artifacts,
	}).Info("extracted")
	res.Success = true
	return res
}
