package evidence

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
)

// DefaultPattern names the evidence file of stage k (1-based).
const DefaultPattern = "M%d.txt"

// Load reads an evidence file from path.
func Load(path string) (Evidence, error) {
	f, err := os.Open(path)
	if err != nil {
		return Evidence{}, fmt.Errorf("%w: %s: %v", ErrCannotOpen, path, err)
	}
	defer f.Close()

	ev, err := Parse(f)
	if err != nil {
		return Evidence{}, fmt.Errorf("%s: %w", path, err)
	}
	return ev, nil
}

// Parse reads a seed followed by whitespace-separated integer triplets until
// EOF. A trailing incomplete triplet is dropped.
func Parse(r io.Reader) (Evidence, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	sc.Split(bufio.ScanWords)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return Evidence{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return Evidence{}, fmt.Errorf("%w: missing seed", ErrMalformed)
	}
	seed, err := strconv.Atoi(sc.Text())
	if err != nil {
		return Evidence{}, fmt.Errorf("%w: seed %q", ErrMalformed, sc.Text())
	}

	ev := Evidence{Seed: seed}
	var cur Triplet
	n := 0
	for sc.Scan() {
		v, err := strconv.Atoi(sc.Text())
		if err != nil {
			return Evidence{}, fmt.Errorf("%w: token %q after %d triplets", ErrMalformed, sc.Text(), len(ev.Triplets))
		}
		cur[n] = v
		n++
		if n == len(cur) {
			ev.Triplets = append(ev.Triplets, cur)
			n = 0
		}
	}
	if err := sc.Err(); err != nil {
		return Evidence{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := ev.Validate(); err != nil {
		return Evidence{}, err
	}
	return ev, nil
}

// Write serializes ev in the format Parse reads: the seed on the first line,
// then one triplet per line.
func Write(w io.Writer, ev Evidence) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d\n", ev.Seed)
	for _, t := range ev.Triplets {
		fmt.Fprintf(bw, "%d %d %d\n", t[0], t[1], t[2])
	}
	return bw.Flush()
}

// Save writes ev to path.
func Save(ev Evidence, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create evidence file: %w", err)
	}
	if err := Write(f, ev); err != nil {
		f.Close()
		return fmt.Errorf("write evidence file: %w", err)
	}
	return f.Close()
}

// StagePath returns the evidence file of stage k (1-based) inside dir. If the
// patterned name does not exist but the bare "M<k>" does, the bare name is
// returned.
func StagePath(dir, pattern string, k int) string {
	if pattern == "" {
		pattern = DefaultPattern
	}
	p := filepath.Join(dir, fmt.Sprintf(pattern, k))
	if _, err := os.Stat(p); err == nil {
		return p
	}
	bare := filepath.Join(dir, fmt.Sprintf("M%d", k))
	if _, err := os.Stat(bare); err == nil {
		return bare
	}
	return p
}

// CountStages counts the contiguous run of evidence files M1, M2, ... in dir.
func CountStages(dir, pattern string) (int, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrCannotOpen, dir, err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("%w: %s is not a directory", ErrCannotOpen, dir)
	}

	n := 0
	for {
		p := StagePath(dir, pattern, n+1)
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			break
		} else if err != nil {
			return n, fmt.Errorf("%w: %s: %v", ErrCannotOpen, p, err)
		}
		n++
	}
	return n, nil
}

var stageFileRE = regexp.MustCompile(`^M(\d+)(\.txt)?$`)

// StageFiles lists every evidence-looking file in dir by stage number, gaps
// included. It is used to warn about files CountStages will ignore.
func StageFiles(dir string) (map[int]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCannotOpen, dir, err)
	}
	out := make(map[int]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := stageFileRE.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		k, err := strconv.Atoi(m[1])
		if err != nil || k <= 0 {
			continue
		}
		out[k] = filepath.Join(dir, e.Name())
	}
	return out, nil
}

// LoadAll loads the evidence files of stages 1..n, returned in stage order
// (index 0 is stage 1).
func LoadAll(dir, pattern string, n int) ([]Evidence, error) {
	out := make([]Evidence, 0, n)
	for k := 1; k <= n; k++ {
		ev, err := Load(StagePath(dir, pattern, k))
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", k, err)
		}
		out = append(out, ev)
	}
	return out, nil
}
