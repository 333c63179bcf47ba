package batch

import (
	"bufio"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Manifest is the batch.json summary written after a run.
type Manifest struct {
	Started   time.Time `json:"started"`
	Total     int       `json:"total"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Results   []Result  `json:"results"`
}

// WriteManifest writes batch.json to path.
func WriteManifest(path string, started time.Time, results []Result) error {
	failed := Failed(results)
	m := Manifest{
		Started:   started.UTC(),
		Total:     len(results),
		Succeeded: len(results) - failed,
		Failed:    failed,
		Results:   results,
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReadList reads container paths, one per line. Blank lines and lines
// starting with '#' are ignored.
func ReadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "batch: open list")
	}
	defer f.Close()

	var paths []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		paths = append(paths, line)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "batch: read list %s", path)
	}
	return paths, nil
}
