package optimizer

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
	"tupledb/catalog/db_types"
)

var ErrCorruptSnapshot = errors.New("corrupt stats snapshot")

const statsFormatVersion = 1

// Codec compresses the payload of a stats snapshot. Its value is stored as the first byte of the snapshot.
type Codec byte

const (
	CodecNone Codec = iota
	CodecSnappy
	CodecZstd
	CodecLZ4
)

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecSnappy:
		return "snappy"
	case CodecZstd:
		return "zstd"
	case CodecLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("Codec(%d)", byte(c))
	}
}

func ParseCodec(name string) (Codec, error) {
	for _, c := range []Codec{CodecNone, CodecSnappy, CodecZstd, CodecLZ4} {
		if strings.EqualFold(c.String(), name) {
			return c, nil
		}
	}
	return 0, errors.Errorf("unknown snapshot codec: %q", name)
}

func (c Codec) compress(data []byte) ([]byte, error) {
	switch c {
	case CodecNone:
		return data, nil
	case CodecSnappy:
		return snappy.Encode(nil, data), nil
	case CodecZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil
	case CodecLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, errors.Errorf("unknown snapshot codec: %d", byte(c))
	}
}

func (c Codec) decompress(data []byte) ([]byte, error) {
	switch c {
	case CodecNone:
		return data, nil
	case CodecSnappy:
		return snappy.Decode(nil, data)
	case CodecZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return dec.DecodeAll(data, nil)
	case CodecLZ4:
		return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
	default:
		return nil, errors.Wrapf(ErrCorruptSnapshot, "unknown codec %d", byte(c))
	}
}

// WriteSnapshot writes stats to w as a codec byte followed by the compressed list of serialized stats.
func WriteSnapshot(w io.Writer, codec Codec, stats []*TableStats) error {
	payload := binary.AppendUvarint(nil, uint64(len(stats)))
	for _, s := range stats {
		b, err := s.MarshalBinary()
		if err != nil {
			return err
		}
		payload = binary.AppendUvarint(payload, uint64(len(b)))
		payload = append(payload, b...)
	}

	compressed, err := codec.compress(payload)
	if err != nil {
		return errors.Wrapf(err, "compressing stats snapshot with %s", codec)
	}

	if _, err := w.Write([]byte{byte(codec)}); err != nil {
		return err
	}
	_, err = w.Write(compressed)
	return err
}

// ReadSnapshot reads stats written by WriteSnapshot.
func ReadSnapshot(r io.Reader) ([]*TableStats, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.Wrap(ErrCorruptSnapshot, "empty snapshot")
	}

	payload, err := Codec(data[0]).decompress(data[1:])
	if err != nil {
		return nil, errors.Wrap(ErrCorruptSnapshot, err.Error())
	}

	d := &decoder{buf: payload}
	n := d.readUvarint()
	if d.err != nil {
		return nil, d.err
	}

	var res []*TableStats
	for i := uint64(0); i < n; i++ {
		size := d.readUvarint()
		b := d.next(int(size))
		if d.err != nil {
			return nil, d.err
		}

		s, err := UnmarshalTableStats(b)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, nil
}

// MarshalBinary encodes the stats, histograms included, in big endian.
func (s *TableStats) MarshalBinary() ([]byte, error) {
	b := []byte{statsFormatVersion}
	b = binary.BigEndian.AppendUint32(b, uint32(s.tableID))
	b = binary.BigEndian.AppendUint64(b, uint64(s.ioCostPerPage))
	b = binary.BigEndian.AppendUint64(b, uint64(s.numPages))
	b = binary.BigEndian.AppendUint64(b, uint64(s.totalTuples))
	b = binary.BigEndian.AppendUint32(b, uint32(len(s.types)))

	for i, t := range s.types {
		b = append(b, byte(t))
		h := s.intHists[i]
		if t == db_types.StringTypeID {
			h = s.strHists[i].hist
		}
		b = appendHistogram(b, h)
	}
	return b, nil
}

func appendHistogram(b []byte, h *IntHistogram) []byte {
	b = binary.BigEndian.AppendUint32(b, uint32(h.min))
	b = binary.BigEndian.AppendUint32(b, uint32(h.max))
	b = binary.BigEndian.AppendUint64(b, uint64(h.width))
	b = binary.BigEndian.AppendUint32(b, uint32(h.total))
	b = binary.BigEndian.AppendUint32(b, uint32(len(h.buckets)))
	for _, c := range h.buckets {
		b = binary.BigEndian.AppendUint32(b, uint32(c))
	}
	return b
}

func (s *TableStats) UnmarshalBinary(data []byte) error {
	d := &decoder{buf: data}
	if v := d.readByte(); d.err == nil && v != statsFormatVersion {
		return errors.Wrapf(ErrCorruptSnapshot, "unknown stats format version %d", v)
	}

	s.tableID = int32(d.readUint32())
	s.ioCostPerPage = int(d.readUint64())
	s.numPages = int(d.readUint64())
	s.totalTuples = int(d.readUint64())
	n := int(d.readUint32())
	if d.err != nil {
		return d.err
	}
	if n > len(d.buf) {
		return errors.Wrapf(ErrCorruptSnapshot, "%d fields do not fit in %d bytes", n, len(d.buf))
	}

	s.types = make([]db_types.TypeID, n)
	s.intHists = make([]*IntHistogram, n)
	s.strHists = make([]*StringHistogram, n)
	for i := 0; i < n; i++ {
		s.types[i] = db_types.TypeID(d.readByte())
		h := d.readHistogram()
		if d.err != nil {
			return d.err
		}

		switch s.types[i] {
		case db_types.IntegerTypeID:
			s.intHists[i] = h
		case db_types.StringTypeID:
			s.strHists[i] = &StringHistogram{hist: h}
		default:
			return errors.Wrapf(ErrCorruptSnapshot, "unknown type id %d", s.types[i])
		}
	}

	if len(d.buf) != 0 {
		return errors.Wrapf(ErrCorruptSnapshot, "%d trailing bytes", len(d.buf))
	}
	return nil
}

func UnmarshalTableStats(data []byte) (*TableStats, error) {
	s := &TableStats{}
	if err := s.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return s, nil
}

// decoder reads big endian values from buf. After the first short read every read returns zero and err is set.
type decoder struct {
	buf []byte
	err error
}

func (d *decoder) next(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || len(d.buf) < n {
		d.err = errors.Wrapf(ErrCorruptSnapshot, "need %d bytes, %d left", n, len(d.buf))
		return nil
	}

	b := d.buf[:n]
	d.buf = d.buf[n:]
	return b
}

func (d *decoder) readByte() byte {
	if b := d.next(1); b != nil {
		return b[0]
	}
	return 0
}

func (d *decoder) readUint32() uint32 {
	if b := d.next(4); b != nil {
		return binary.BigEndian.Uint32(b)
	}
	return 0
}

func (d *decoder) readUint64() uint64 {
	if b := d.next(8); b != nil {
		return binary.BigEndian.Uint64(b)
	}
	return 0
}

func (d *decoder) readUvarint() uint64 {
	if d.err != nil {
		return 0
	}

	v, n := binary.Uvarint(d.buf)
	if n <= 0 {
		d.err = errors.Wrap(ErrCorruptSnapshot, "bad length")
		return 0
	}
	d.buf = d.buf[n:]
	return v
}

func (d *decoder) readHistogram() *IntHistogram {
	h := &IntHistogram{
		min:   int32(d.readUint32()),
		max:   int32(d.readUint32()),
		width: int64(d.readUint64()),
		total: int32(d.readUint32()),
	}

	n := int(d.readUint32())
	if d.err != nil || n > len(d.buf)/4 {
		if d.err == nil {
			d.err = errors.Wrapf(ErrCorruptSnapshot, "%d buckets do not fit in %d bytes", n, len(d.buf))
		}
		return nil
	}

	h.buckets = make([]int32, n)
	for i := range h.buckets {
		h.buckets[i] = int32(d.readUint32())
	}

	switch {
	case h.min > h.max:
		d.err = errors.Wrapf(ErrCorruptSnapshot, "histogram min %d is above max %d", h.min, h.max)
	case n == 0 || int64(n) > int64(h.max)-int64(h.min)+1:
		d.err = errors.Wrapf(ErrCorruptSnapshot, "%d buckets for range [%d, %d]", n, h.min, h.max)
	case h.width <= 0:
		d.err = errors.Wrapf(ErrCorruptSnapshot, "histogram bucket width %d", h.width)
	}
	if d.err != nil {
		return nil
	}
	return h
}
