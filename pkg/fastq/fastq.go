// Package fastq reads and writes the four-line FASTQ record format.
package fastq

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/jpfielding/idencomp.go/pkg/sequence"
)

var ErrFormat = errors.New("fastq: malformed record")

// Record is one FASTQ entry.
type Record struct {
	Name string
	sequence.Read
}

// Reader parses records from a stream.
type Reader struct {
	br   *bufio.Reader
	line int
}

func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReaderSize(r, 1<<20)}
}

func (r *Reader) readLine() ([]byte, error) {
	b, err := r.br.ReadBytes('\n')
	if err != nil && !(errors.Is(err, io.EOF) && len(b) > 0) {
		return nil, err
	}
	r.line++
	return bytes.TrimRight(b, "\r\n"), nil
}

// Next returns the next record or io.EOF.
func (r *Reader) Next() (Record, error) {
	var head []byte
	var err error
	for {
		if head, err = r.readLine(); err != nil {
			return Record{}, err
		}
		if len(head) > 0 {
			break
		}
	}
	if head[0] != '@' {
		return Record{}, fmt.Errorf("%w: line %d: header must start with '@'", ErrFormat, r.line)
	}
	seq, err := r.readLine()
	if err != nil {
		return Record{}, fmt.Errorf("%w: line %d: %v", ErrFormat, r.line, err)
	}
	plus, err := r.readLine()
	if err != nil || len(plus) == 0 || plus[0] != '+' {
		return Record{}, fmt.Errorf("%w: line %d: separator must start with '+'", ErrFormat, r.line)
	}
	qual, err := r.readLine()
	if err != nil {
		return Record{}, fmt.Errorf("%w: line %d: %v", ErrFormat, r.line, err)
	}
	read, err := sequence.ParseRead(seq, qual)
	if err != nil {
		return Record{}, fmt.Errorf("%w: line %d: %w", ErrFormat, r.line, err)
	}
	return Record{Name: string(head[1:]), Read: read}, nil
}

// ReadAll reads every remaining record.
func (r *Reader) ReadAll() ([]Record, error) {
	var out []Record
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}

// Writer emits records.
type Writer struct {
	bw  *bufio.Writer
	buf []byte
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriterSize(w, 1<<20)}
}

// Write emits one record.
func (w *Writer) Write(rec Record) error {
	b := w.buf[:0]
	b = append(b, '@')
	b = append(b, rec.Name...)
	b = append(b, '\n')
	seq, qual := rec.AppendFASTQ(nil, nil)
	b = append(b, seq...)
	b = append(b, "\n+\n"...)
	b = append(b, qual...)
	b = append(b, '\n')
	w.buf = b
	_, err := w.bw.Write(b)
	return err
}

// Flush writes buffered output.
func (w *Writer) Flush() error { return w.bw.Flush() }
