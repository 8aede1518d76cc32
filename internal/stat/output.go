package stat

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sanspareilsmyn/pumplens/internal/series"
	"github.com/sanspareilsmyn/pumplens/internal/spectrum"
)

// outputFile is a lazily opened append-only sink. Once opened it stays open
// until close; a failed open leaves it unopened so the next write retries.
type outputFile struct {
	path string
	f    *os.File
}

func (o *outputFile) opened() bool { return o.f != nil }

// open creates the file on first use and reports whether it already held
// data, in which case a header must not be written again.
func (o *outputFile) open() (existing bool, err error) {
	if err := os.MkdirAll(filepath.Dir(o.path), 0o755); err != nil {
		return false, fmt.Errorf("%w: %w", ErrOutputUnavailable, err)
	}
	f, err := os.OpenFile(o.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrOutputUnavailable, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return false, fmt.Errorf("%w: %w", ErrOutputUnavailable, err)
	}
	o.f = f
	return info.Size() > 0, nil
}

func (o *outputFile) write(s string) error {
	if _, err := o.f.WriteString(s); err != nil {
		return fmt.Errorf("%w: %w", ErrOutputUnavailable, err)
	}
	return nil
}

func (o *outputFile) close() error {
	if o.f == nil {
		return nil
	}
	syncErr := o.f.Sync()
	closeErr := o.f.Close()
	o.f = nil
	if syncErr != nil {
		return syncErr
	}
	return closeErr
}

// historyFile writes the time history table. Rows are consumed from the
// store in order; written counts how many already reached the file.
type historyFile struct {
	out        outputFile
	needHeader bool
	written    int
}

func newHistoryFile(path string) *historyFile {
	return &historyFile{out: outputFile{path: path}}
}

// sync appends every stored sample not yet on disk.
func (h *historyFile) sync(store *series.Store) error {
	if !h.out.opened() {
		existing, err := h.out.open()
		if err != nil {
			return err
		}
		h.needHeader = !existing
	}

	var b strings.Builder
	if h.needHeader {
		b.WriteString(formatHeader(store.Names()))
	}
	for i := h.written; i < store.Len(); i++ {
		b.WriteString(formatRow(store.At(i)))
	}
	if b.Len() == 0 {
		return nil
	}
	if err := h.out.write(b.String()); err != nil {
		return err
	}
	h.needHeader = false
	h.written = store.Len()
	return nil
}

func (h *historyFile) pending(store *series.Store) int {
	return store.Len() - h.written
}

func formatHeader(names []string) string {
	return "# Time\t" + strings.Join(names, "\t") + "\n"
}

func formatRow(s series.Sample) string {
	var b strings.Builder
	b.WriteString(formatFloat(s.Time))
	for _, v := range s.Values {
		b.WriteByte('\t')
		b.WriteString(formatFloat(v))
	}
	b.WriteByte('\n')
	return b.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// writeSpectrum appends one spectral pass block.
func writeSpectrum(o *outputFile, time float64, samples int, bins []spectrum.Bin) error {
	if !o.opened() {
		if _, err := o.open(); err != nil {
			return err
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# Time = %s samples = %d\n", formatFloat(time), samples)
	for _, bin := range bins {
		b.WriteString(formatFloat(bin.Frequency))
		b.WriteByte('\t')
		b.WriteString(formatFloat(bin.Magnitude))
		b.WriteByte('\n')
	}
	return o.write(b.String())
}
