package wire

import (
	"encoding/binary"
	"io"

	"github.com/wasit-fuzz/wasit/errs"
)

// MaxFrameBody caps a single frame body to guard against a corrupt or
// hostile length prefix causing an unbounded allocation.
const MaxFrameBody = 64 << 20

// WriteFrame writes body preceded by its 8-byte little-endian length.
func WriteFrame(w io.Writer, body []byte) error {
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return errs.New(errs.PhaseWire, errs.KindProtocol).Detail("write length prefix").Cause(err).Build()
	}
	if _, err := w.Write(body); err != nil {
		return errs.New(errs.PhaseWire, errs.KindProtocol).Detail("write frame body").Cause(err).Build()
	}
	return nil
}

// ReadFrame reads one length-prefixed frame and returns its body.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [8]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, errs.New(errs.PhaseWire, errs.KindProtocol).Detail("read length prefix").Cause(err).Build()
	}
	n := binary.LittleEndian.Uint64(lenBuf[:])
	if n > MaxFrameBody {
		return nil, errs.New(errs.PhaseWire, errs.KindProtocol).
			Detail("frame body length %d exceeds max %d", n, MaxFrameBody).Build()
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, errs.New(errs.PhaseWire, errs.KindProtocol).Detail("read frame body").Cause(err).Build()
	}
	return body, nil
}
