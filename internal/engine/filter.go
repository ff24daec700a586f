package engine

import (
	"encoding/binary"
	"sync"

	"github.com/klauspost/compress/zstd"

	"somacore/internal/errors"
)

// FilterKind names a column filter.
type FilterKind string

const (
	// FilterPositiveDelta stores the first 8-byte word followed by the
	// differences between consecutive words. Input must be non-decreasing.
	FilterPositiveDelta FilterKind = "positive_delta"
	// FilterZstd compresses the column with zstd.
	FilterZstd FilterKind = "zstd"
)

// Filter is one stage of a column's filter pipeline.
type Filter struct {
	Kind  FilterKind `json:"kind"`
	Level int        `json:"level,omitempty"`
}

// FilterList is applied in order on write and in reverse on read.
type FilterList []Filter

// PositiveDelta returns a positive-delta filter.
func PositiveDelta() Filter { return Filter{Kind: FilterPositiveDelta} }

// Zstd returns a zstd filter. Levels follow the zstd command line; zero or
// negative selects the library default.
func Zstd(level int) Filter { return Filter{Kind: FilterZstd, Level: level} }

func (f Filter) validate() error {
	switch f.Kind {
	case FilterPositiveDelta, FilterZstd:
		return nil
	}
	return errors.InvalidArgumentf("unknown filter %q", f.Kind)
}

func (fl FilterList) validate() error {
	for _, f := range fl {
		if err := f.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (fl FilterList) hasDelta() bool {
	for _, f := range fl {
		if f.Kind == FilterPositiveDelta {
			return true
		}
	}
	return false
}

// encode runs b through the pipeline.
func (fl FilterList) encode(b []byte) ([]byte, error) {
	var err error
	for _, f := range fl {
		switch f.Kind {
		case FilterPositiveDelta:
			b, err = deltaEncode(b)
		case FilterZstd:
			b = encoderFor(f.Level).EncodeAll(b, nil)
		default:
			err = f.validate()
		}
		if err != nil {
			return nil, err
		}
	}
	return b, nil
}

// decode reverses encode.
func (fl FilterList) decode(b []byte) ([]byte, error) {
	var err error
	for i := len(fl) - 1; i >= 0; i-- {
		switch fl[i].Kind {
		case FilterPositiveDelta:
			b, err = deltaDecode(b)
		case FilterZstd:
			b, err = decoder.DecodeAll(b, nil)
			if err != nil {
				err = errors.Wrap(err, "zstd decode")
			}
		default:
			err = fl[i].validate()
		}
		if err != nil {
			return nil, err
		}
	}
	return b, nil
}

var (
	encoders sync.Map // zstd.EncoderLevel -> *zstd.Encoder
	decoder  *zstd.Decoder
)

func init() {
	var err error
	decoder, err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		panic(err)
	}
}

func encoderFor(level int) *zstd.Encoder {
	lvl := zstd.SpeedDefault
	if level > 0 {
		lvl = zstd.EncoderLevelFromZstd(level)
	}
	if enc, ok := encoders.Load(lvl); ok {
		return enc.(*zstd.Encoder)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(lvl), zstd.WithEncoderConcurrency(1))
	if err != nil {
		panic(err)
	}
	actual, _ := encoders.LoadOrStore(lvl, enc)
	return actual.(*zstd.Encoder)
}

func deltaEncode(b []byte) ([]byte, error) {
	if len(b)%8 != 0 {
		return nil, errors.InvalidArgumentf("positive delta needs 8-byte words, got %d bytes", len(b))
	}
	out := make([]byte, len(b))
	var prev uint64
	for i := 0; i < len(b); i += 8 {
		v := binary.LittleEndian.Uint64(b[i:])
		if v < prev {
			return nil, errors.InvalidArgumentf("positive delta input decreases at word %d", i/8)
		}
		binary.LittleEndian.PutUint64(out[i:], v-prev)
		prev = v
	}
	return out, nil
}

func deltaDecode(b []byte) ([]byte, error) {
	if len(b)%8 != 0 {
		return nil, errors.Newf("corrupt positive delta stream of %d bytes", len(b))
	}
	out := make([]byte, len(b))
	var acc uint64
	for i := 0; i < len(b); i += 8 {
		acc += binary.LittleEndian.Uint64(b[i:])
		binary.LittleEndian.PutUint64(out[i:], acc)
	}
	return out, nil
}
