package replogrec

import (
	"io"
	"sync"

	"github.com/pkg/errors"
)

// Writer is the capture-side sink: it appends records to an io.Writer,
// one line per record, emitting a format header before the first
// record. Writer is safe for concurrent use; the capture hook may be
// invoked from many goroutines at once.
type Writer struct {
	lock        sync.Mutex
	out         io.Writer
	wroteHeader bool
}

func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

// WriteRecord serializes one record and appends it to the output.
func (w *Writer) WriteRecord(record Record) error {
	line, err := record.EncodeLine()
	if err != nil {
		return err
	}
	w.lock.Lock()
	defer w.lock.Unlock()
	if !w.wroteHeader {
		header, err := Header{Version: FormatVersion}.EncodeHeader()
		if err != nil {
			return err
		}
		if err := w.writeLine(header); err != nil {
			return err
		}
		w.wroteHeader = true
	}
	return w.writeLine(line)
}

func (w *Writer) writeLine(line []byte) error {
	if _, err := w.out.Write(append(line, '\n')); err != nil {
		return errors.Wrap(err, "cannot append record")
	}
	return nil
}
