package index

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Artifact file names inside an index directory.
const (
	VectorsFile = "index.bin"
	TextsFile   = "texts.txt"
	SourcesFile = "sources.txt"
)

var vectorsMagic = [4]byte{'C', 'I', 'D', 'X'}

const (
	formatVersion = 1
	headerSize    = 16
)

type header struct {
	Magic     [4]byte
	Version   uint32
	Dimension uint32
	Count     uint32
}

// Save writes all three artifacts into dir. Companion files are written first
// and index.bin last, each through a temp file and rename, so a reader that
// sees a new index.bin also sees matching texts and sources.
func (ix *Index) Save(dir string) error {
	if ix == nil {
		return ErrEmptyCorpus
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating index dir: %w", err)
	}

	if err := writeAtomic(filepath.Join(dir, TextsFile), func(w io.Writer) error {
		return writeLines(w, ix.texts)
	}); err != nil {
		return err
	}
	if err := writeAtomic(filepath.Join(dir, SourcesFile), func(w io.Writer) error {
		return writeLines(w, ix.sources)
	}); err != nil {
		return err
	}
	return writeAtomic(filepath.Join(dir, VectorsFile), ix.writeVectors)
}

func (ix *Index) writeVectors(w io.Writer) error {
	h := header{
		Magic:     vectorsMagic,
		Version:   formatVersion,
		Dimension: uint32(ix.dim),
		Count:     uint32(len(ix.texts)),
	}
	if err := binary.Write(w, binary.LittleEndian, h); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, ix.vectors)
}

// Load reads an index from dir. A missing index.bin yields (nil, nil): the
// absent index. A present index.bin with missing or mismatched companions is
// an error rather than a partially loaded index.
func Load(dir string) (*Index, error) {
	vecPath := filepath.Join(dir, VectorsFile)
	raw, err := os.ReadFile(vecPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", VectorsFile, err)
	}

	dim, vectors, err := decodeVectors(raw)
	if err != nil {
		return nil, err
	}

	texts, err := readLines(filepath.Join(dir, TextsFile))
	if err != nil {
		return nil, err
	}
	sources, err := readLines(filepath.Join(dir, SourcesFile))
	if err != nil {
		return nil, err
	}

	count := len(vectors) / dim
	if count != len(texts) || count != len(sources) {
		return nil, fmt.Errorf("%w: %d vectors, %d texts, %d sources",
			ErrIndexMismatch, count, len(texts), len(sources))
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: zero chunks", ErrCorruptIndex)
	}

	return &Index{dim: dim, vectors: vectors, texts: texts, sources: sources}, nil
}

func decodeVectors(raw []byte) (int, []float32, error) {
	if len(raw) < headerSize {
		return 0, nil, fmt.Errorf("%w: short header", ErrCorruptIndex)
	}
	var h header
	if err := binary.Read(bytes.NewReader(raw[:headerSize]), binary.LittleEndian, &h); err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
	}
	if h.Magic != vectorsMagic {
		return 0, nil, fmt.Errorf("%w: bad magic %q", ErrCorruptIndex, h.Magic[:])
	}
	if h.Version != formatVersion {
		return 0, nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptIndex, h.Version)
	}
	if h.Dimension == 0 {
		return 0, nil, fmt.Errorf("%w: zero dimension", ErrCorruptIndex)
	}

	want := uint64(h.Dimension) * uint64(h.Count) * 4
	if uint64(len(raw)-headerSize) != want {
		return 0, nil, fmt.Errorf("%w: body is %d bytes, header implies %d", ErrCorruptIndex, len(raw)-headerSize, want)
	}

	vectors := make([]float32, int(h.Dimension)*int(h.Count))
	if err := binary.Read(bytes.NewReader(raw[headerSize:]), binary.LittleEndian, vectors); err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
	}
	return int(h.Dimension), vectors, nil
}

func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", filepath.Base(path), err)
	}
	tmpPath := tmp.Name()

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("flushing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing %s: %w", filepath.Base(path), err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod %s: %w", filepath.Base(path), err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming %s: %w", filepath.Base(path), err)
	}
	return nil
}

var lineEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\r", `\r`)

func writeLines(w io.Writer, lines []string) error {
	for _, l := range lines {
		if _, err := io.WriteString(w, lineEscaper.Replace(l)+"\n"); err != nil {
			return err
		}
	}
	return nil
}

func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s missing", ErrIncompleteIndex, filepath.Base(path))
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	if len(data) == 0 {
		return []string{}, nil
	}

	raw := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	lines := make([]string, len(raw))
	for i, l := range raw {
		lines[i] = unescapeLine(strings.TrimSuffix(l, "\r"))
	}
	return lines, nil
}

func unescapeLine(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		switch s[i+1] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case '\\':
			b.WriteByte('\\')
		default:
			b.WriteByte(c)
			continue
		}
		i++
	}
	return b.String()
}
