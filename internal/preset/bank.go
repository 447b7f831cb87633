package preset

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// BankSize is the number of presets in a bank.
const BankSize = 128

const (
	bankHeader = "amSynth1.0preset"
	bankEOF    = "EOF"
)

// Bank is a fixed set of presets, usually backed by a file.
type Bank struct {
	Name     string
	Path     string
	ReadOnly bool
	Presets  [BankSize]*Preset
}

// NewBank returns a bank of default presets.
func NewBank(name string) *Bank {
	b := &Bank{Name: name}
	for i := range b.Presets {
		b.Presets[i] = New(DefaultName)
	}
	return b
}

// ReadBank parses bank text. Slots the text does not fill hold default
// presets; presets beyond BankSize are dropped.
func ReadBank(r io.Reader) (*Bank, error) {
	b := NewBank("")
	sc := bufio.NewScanner(r)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: empty bank", ErrBadFormat)
	}
	if strings.TrimSpace(sc.Text()) != bankHeader {
		return nil, fmt.Errorf("%w: missing %s header", ErrBadFormat, bankHeader)
	}

	index := -1
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if line == bankEOF {
			break
		}
		if name, ok := parsePresetLine(line); ok {
			index++
			if index < BankSize {
				b.Presets[index].name = name
			}
			continue
		}
		if index < 0 {
			return nil, fmt.Errorf("%w: %q before first preset", ErrBadFormat, line)
		}
		if index >= BankSize {
			continue
		}
		if err := b.Presets[index].applyParameterLine(line); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return b, nil
}

// LoadBank reads the bank at path. The bank is named after the file.
func LoadBank(path string) (*Bank, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	b, err := ReadBank(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	b.Path = path
	b.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if fi, err := f.Stat(); err == nil && fi.Mode().Perm()&0o200 == 0 {
		b.ReadOnly = true
	}
	return b, nil
}

// WriteTo writes the bank in file syntax.
func (b *Bank) WriteTo(w io.Writer) (int64, error) {
	var sb strings.Builder
	sb.WriteString(bankHeader)
	sb.WriteByte('\n')
	for _, p := range b.Presets {
		p.write(&sb)
	}
	sb.WriteString(bankEOF)
	sb.WriteByte('\n')
	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}

// Save writes the bank to path through a temporary file, so a failed
// write leaves the old file intact.
func (b *Bank) Save(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".bank-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := b.WriteTo(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return err
	}
	b.Path = path
	return nil
}

// FindBanks lists the *.bank files in dirs, in directory order.
// Missing directories are skipped.
func FindBanks(dirs []string) ([]string, error) {
	var paths []string
	for _, dir := range dirs {
		matches, err := filepath.Glob(filepath.Join(dir, "*.bank"))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	return paths, nil
}
