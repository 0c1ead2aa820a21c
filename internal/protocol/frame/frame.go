package frame

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/danmuck/skelstream/internal/protocol"
	"github.com/go-gl/mathgl/mgl32"
)

// Header is the fixed wire header.
type Header struct {
	Magic    uint32
	FrameID  uint32
	AuxCount uint32
}

// Frame is one decoded pose frame. Floats is the raw matrix body; its length
// is not required to be a multiple of protocol.MatrixFloats.
type Frame struct {
	Header Header
	Floats []float32
}

// MatrixCount is the number of whole 16-float blocks in the body.
func (f Frame) MatrixCount() int {
	return len(f.Floats) / protocol.MatrixFloats
}

// Matrix returns block i in column-major form. It panics if i is not in
// [0, MatrixCount()).
func (f Frame) Matrix(i int) mgl32.Mat4 {
	off := i * protocol.MatrixFloats
	return Transposed(f.Floats[off : off+protocol.MatrixFloats])
}

// Decode validates the header and reads the matrix body. Trailing bytes that
// do not form a whole float32 are ignored.
func Decode(b []byte) (Frame, error) {
	h, err := DecodeHeader(b)
	if err != nil {
		return Frame{}, err
	}
	body := b[protocol.HeaderLen:]
	floats := make([]float32, len(body)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(body[i*4:]))
	}
	return Frame{Header: h, Floats: floats}, nil
}

// DecodeHeader reads the 12-byte header from the start of b. Only the magic is
// validated; frame id and aux count are passed through.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < protocol.HeaderLen {
		return Header{}, fmt.Errorf("%w: %d bytes", protocol.ErrTruncated, len(b))
	}
	h := Header{
		Magic:    binary.LittleEndian.Uint32(b[0:4]),
		FrameID:  binary.LittleEndian.Uint32(b[4:8]),
		AuxCount: binary.LittleEndian.Uint32(b[8:12]),
	}
	if h.Magic != protocol.MagicNumber {
		return Header{}, fmt.Errorf("%w: 0x%08X", protocol.ErrBadMagic, h.Magic)
	}
	return h, nil
}

func EncodeHeader(h Header) []byte {
	buf := make([]byte, protocol.HeaderLen)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.FrameID)
	binary.LittleEndian.PutUint32(buf[8:12], h.AuxCount)
	return buf
}

// Encode writes h followed by floats. A zero magic is replaced with
// protocol.MagicNumber.
func Encode(h Header, floats []float32) []byte {
	if h.Magic == 0 {
		h.Magic = protocol.MagicNumber
	}
	buf := make([]byte, protocol.HeaderLen+len(floats)*4)
	copy(buf, EncodeHeader(h))
	body := buf[protocol.HeaderLen:]
	for i, f := range floats {
		binary.LittleEndian.PutUint32(body[i*4:], math.Float32bits(f))
	}
	return buf
}

// EncodeMatrices writes one frame carrying column-major mats in wire order.
func EncodeMatrices(frameID, auxCount uint32, mats []mgl32.Mat4) []byte {
	floats := make([]float32, 0, len(mats)*protocol.MatrixFloats)
	for _, m := range mats {
		block := RowMajor(m)
		floats = append(floats, block[:]...)
	}
	return Encode(Header{FrameID: frameID, AuxCount: auxCount}, floats)
}

// Transposed reads a 16-float block as a row-major 4x4 matrix and returns its
// transpose. block must hold at least 16 values.
func Transposed(block []float32) mgl32.Mat4 {
	rows := mgl32.Mat4FromRows(
		mgl32.Vec4{block[0], block[1], block[2], block[3]},
		mgl32.Vec4{block[4], block[5], block[6], block[7]},
		mgl32.Vec4{block[8], block[9], block[10], block[11]},
		mgl32.Vec4{block[12], block[13], block[14], block[15]},
	)
	return rows.Transpose()
}

// RowMajor is the inverse of Transposed: the wire block that decodes to m.
func RowMajor(m mgl32.Mat4) [protocol.MatrixFloats]float32 {
	src := m.Transpose()
	var out [protocol.MatrixFloats]float32
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			out[r*4+c] = src.At(r, c)
		}
	}
	return out
}
