// Package transport implements Socket Framing (spec §4.8): the two-phase
// read that pulls one complete LLRP message frame off an io.Reader, without
// buffering past message boundaries. Grounded in the teacher's
// tpkt.Protocol (a fixed-header-then-declared-body reader over an
// io.ReadWriteCloser).
package transport

import (
	"io"

	"github.com/kulaginds/llrp/internal/llrp/llrperr"
	"github.com/kulaginds/llrp/internal/logging"
)

const headerSize = 6 // 16-bit tag + 32-bit length, per spec §4.6

// FrameReader pulls complete LLRP message frames off r. Zero-length-read
// accounting is per-FrameReader, matching spec §5's "distinct sockets are
// independent" guarantee.
type FrameReader struct {
	r                  io.Reader
	maxMessageBytes    int
	zeroReadChunkLimit int
}

// NewFrameReader wraps r. maxMessageBytes bounds a single frame's declared
// length (0 disables the bound); zeroReadChunkLimit is the number of
// consecutive zero-length reads tolerated before ConnectionBroken is raised.
func NewFrameReader(r io.Reader, maxMessageBytes, zeroReadChunkLimit int) *FrameReader {
	if zeroReadChunkLimit <= 0 {
		zeroReadChunkLimit = 2
	}
	return &FrameReader{r: r, maxMessageBytes: maxMessageBytes, zeroReadChunkLimit: zeroReadChunkLimit}
}

// ReadMessage performs the two-phase read of spec §5: read the fixed 6-byte
// header, decode its 32-bit length, then read the remaining length-6 bytes.
// It returns the complete raw frame (header included) for the Message Codec
// to decode.
func (f *FrameReader) ReadMessage() ([]byte, error) {
	header, err := f.readFull(headerSize)
	if err != nil {
		return nil, err
	}

	declaredLen := int(header[2])<<24 | int(header[3])<<16 | int(header[4])<<8 | int(header[5])
	if declaredLen < headerSize {
		return nil, llrperr.NewDecodeError("frame", "declared length %d is smaller than the header size", declaredLen)
	}
	if f.maxMessageBytes > 0 && declaredLen > f.maxMessageBytes {
		return nil, llrperr.NewDecodeError("frame", "declared length %d exceeds configured maximum %d", declaredLen, f.maxMessageBytes)
	}

	body, err := f.readFull(declaredLen - headerSize)
	if err != nil {
		return nil, err
	}

	frame := make([]byte, 0, declaredLen)
	frame = append(frame, header...)
	frame = append(frame, body...)
	return frame, nil
}

// readFull reads exactly n bytes from f.r, tolerating partial reads but
// raising ConnectionBroken after zeroReadChunkLimit consecutive zero-length
// reads without progress.
func (f *FrameReader) readFull(n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}

	buf := make([]byte, n)
	read := 0
	zeroStreak := 0

	for read < n {
		k, err := f.r.Read(buf[read:])
		if k > 0 {
			read += k
			zeroStreak = 0
		} else {
			zeroStreak++
		}

		if err != nil {
			if err == io.EOF && read == n {
				break
			}
			return nil, llrperr.NewConnectionBroken(err)
		}

		if k == 0 {
			if zeroStreak >= f.zeroReadChunkLimit {
				logging.Warn("transport: %d consecutive zero-length reads, giving up on connection", zeroStreak)
				return nil, llrperr.NewConnectionBroken(io.EOF)
			}
		}
	}

	return buf, nil
}
