// Package stream encodes samples as length-delimited protobuf messages.
//
// Each message is a google.protobuf.Struct:
//
//	{"time": "<RFC 3339 UTC>", "values": {"<metric>": <number>, ...}}
//
// Any protobuf runtime can read the file with a varint-delimited decoder.
package stream

import (
	"bufio"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/xtxerr/perfstat/internal/errors"
	"github.com/xtxerr/perfstat/internal/sample"
	"google.golang.org/protobuf/encoding/protodelim"
	"google.golang.org/protobuf/types/known/structpb"
)

// MaxMessageSize bounds a single decoded sample.
const MaxMessageSize = 1 << 20

const (
	fieldTime   = "time"
	fieldValues = "values"
)

// Encode converts smp to its wire message.
func Encode(smp *sample.Sample) *structpb.Struct {
	values := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(smp.Values))}
	for k, v := range smp.Values {
		values.Fields[k] = structpb.NewNumberValue(v)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldTime:   structpb.NewStringValue(smp.Time.UTC().Format(time.RFC3339Nano)),
		fieldValues: structpb.NewStructValue(values),
	}}
}

// Decode converts a wire message back to a sample.
func Decode(msg *structpb.Struct) (sample.Sample, error) {
	tv, ok := msg.GetFields()[fieldTime]
	if !ok {
		return sample.Sample{}, errors.NewMissingField(fieldTime)
	}
	ts, err := time.Parse(time.RFC3339Nano, tv.GetStringValue())
	if err != nil {
		return sample.Sample{}, fmt.Errorf("parse time: %w", err)
	}

	values := msg.GetFields()[fieldValues].GetStructValue()
	smp := sample.New(ts.UTC(), len(values.GetFields()))
	for k, v := range values.GetFields() {
		num, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return sample.Sample{}, fmt.Errorf("metric %s: not a number", k)
		}
		smp.Values[k] = num.NumberValue
	}
	return smp, nil
}

// Writer writes length-delimited samples to an io.Writer.
// It is safe for concurrent use.
type Writer struct {
	w  io.Writer
	mu sync.Mutex
	n  int
}

// NewWriter creates a Writer wrapping w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write marshals and writes one sample with its length prefix.
func (w *Writer) Write(smp *sample.Sample) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := protodelim.MarshalTo(w.w, Encode(smp)); err != nil {
		return fmt.Errorf("write sample: %w", err)
	}
	w.n++
	return nil
}

// Count returns the number of samples written.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}

// Reader reads length-delimited samples from an io.Reader.
type Reader struct {
	r  *bufio.Reader
	mu sync.Mutex
}

// NewReader creates a Reader wrapping r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Read returns the next sample. It returns io.EOF at a clean end of input.
func (r *Reader) Read() (sample.Sample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg := &structpb.Struct{}
	opts := protodelim.UnmarshalOptions{MaxSize: MaxMessageSize}
	if err := opts.UnmarshalFrom(r.r, msg); err != nil {
		if errors.Is(err, io.EOF) {
			return sample.Sample{}, io.EOF
		}
		return sample.Sample{}, fmt.Errorf("read sample: %w", err)
	}
	return Decode(msg)
}

// WriteSeries writes every sample of s to w.
func WriteSeries(w io.Writer, s *sample.Series) (int, error) {
	sw := NewWriter(w)
	for i := range s.Len() {
		if err := sw.Write(s.At(i)); err != nil {
			return sw.Count(), err
		}
	}
	return sw.Count(), nil
}

// ReadSeries reads samples until EOF and appends them to a new series.
func ReadSeries(r io.Reader) (*sample.Series, error) {
	sr := NewReader(r)
	series := sample.NewSeries(0)
	for {
		smp, err := sr.Read()
		if err == io.EOF {
			return series, nil
		}
		if err != nil {
			return nil, err
		}
		if err := series.Append(smp); err != nil {
			return nil, err
		}
	}
}
