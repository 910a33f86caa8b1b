// Package record writes every published frame to a CBOR sequence file and
// reads such files back. Files ending in ".zst" are zstd-compressed.
package record

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/gwillem/diablo/pkg/clock"
	"github.com/gwillem/diablo/pkg/motion"
)

// encMode uses Core Deterministic Encoding so identical runs produce
// identical files.
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("record: CBOR encoder initialization failed: " + err.Error())
	}
}

// Record is one published frame.
type Record struct {
	Seq uint64 `cbor:"seq"`
	// Offset is the time since the recorder was opened.
	Offset time.Duration       `cbor:"offset"`
	Frame  motion.ControlFrame `cbor:"frame"`
}

// Recorder is a publisher that appends frames to a file.
type Recorder struct {
	clock clock.Clock
	start time.Time

	mu     sync.Mutex
	file   *os.File
	buf    *bufio.Writer
	zw     *zstd.Encoder
	enc    *cbor.Encoder
	seq    uint64
	closed bool
}

// Create opens path for writing, truncating it.
func Create(path string, clk clock.Clock) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create recording: %w", err)
	}

	r := &Recorder{clock: clk, start: clk.Now(), file: f, buf: bufio.NewWriter(f)}
	var w io.Writer = r.buf
	if isCompressed(path) {
		r.zw, err = zstd.NewWriter(r.buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("create zstd writer: %w", err)
		}
		w = r.zw
	}
	r.enc = encMode.NewEncoder(w)
	return r, nil
}

// Publish appends frame to the recording.
func (r *Recorder) Publish(ctx context.Context, frame motion.ControlFrame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.New("record: recorder closed")
	}
	rec := Record{Seq: r.seq, Offset: r.clock.Now().Sub(r.start), Frame: frame}
	if err := r.enc.Encode(rec); err != nil {
		return fmt.Errorf("encode frame %d: %w", r.seq, err)
	}
	r.seq++
	return nil
}

// Count returns the number of frames recorded.
func (r *Recorder) Count() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seq
}

// Close flushes and closes the file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	if r.zw != nil {
		if err := r.zw.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := r.buf.Flush(); err != nil {
		errs = append(errs, err)
	}
	if err := r.file.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("close recording: %w", errors.Join(errs...))
	}
	return nil
}

// Reader iterates the records of a file.
type Reader struct {
	file *os.File
	zr   *zstd.Decoder
	dec  *cbor.Decoder
}

// Open opens a recording for reading.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}

	r := &Reader{file: f}
	var src io.Reader = bufio.NewReader(f)
	if isCompressed(path) {
		r.zr, err = zstd.NewReader(src)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("create zstd reader: %w", err)
		}
		src = r.zr
	}
	r.dec = cbor.NewDecoder(src)
	return r, nil
}

// Next returns the next record, or io.EOF at the end of the file.
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

// Close releases the file.
func (r *Reader) Close() error {
	if r.zr != nil {
		r.zr.Close()
	}
	return r.file.Close()
}

// ReadAll returns every record in path.
func ReadAll(path string) ([]Record, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var out []Record
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}

func isCompressed(path string) bool {
	return strings.HasSuffix(path, ".zst")
}
