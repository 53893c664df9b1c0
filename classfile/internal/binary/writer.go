package binary

import (
	"bytes"
	"encoding/binary"
)

// Writer provides buffered big-endian writing for class-file encoding.
type Writer struct {
	buf *bytes.Buffer
}

// NewWriter creates a new Writer.
func NewWriter() *Writer {
	return &Writer{buf: &bytes.Buffer{}}
}

// Bytes returns the written bytes.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Len returns the number of bytes written.
func (w *Writer) Len() int {
	return w.buf.Len()
}

// Byte writes a single byte.
func (w *Writer) Byte(b byte) {
	w.buf.WriteByte(b)
}

// WriteBytes writes a byte slice.
func (w *Writer) WriteBytes(data []byte) {
	w.buf.Write(data)
}

// WriteU16 writes a big-endian uint16.
func (w *Writer) WriteU16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

// WriteU32 writes a big-endian uint32.
func (w *Writer) WriteU32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

// WriteS32 writes a big-endian int32.
func (w *Writer) WriteS32(v int32) {
	w.WriteU32(uint32(v))
}

// WriteU64 writes a big-endian uint64.
func (w *Writer) WriteU64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// PutU16At overwrites two bytes at pos.
func (w *Writer) PutU16At(pos int, v uint16) {
	binary.BigEndian.PutUint16(w.buf.Bytes()[pos:], v)
}

// PutU32At overwrites four bytes at pos.
func (w *Writer) PutU32At(pos int, v uint32) {
	binary.BigEndian.PutUint32(w.buf.Bytes()[pos:], v)
}
