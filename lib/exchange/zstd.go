package exchange

/* zstd.go wraps a Transport with zstd compression. Cell messages are a few
kilobytes of mostly-float64 data, so this is only worth turning on for slow
interconnects; the run configuration decides. */

import (
	"github.com/DataDog/zstd"
)

// ZstdTransport compresses message bodies before handing them to the
// wrapped Transport and decompresses them on receive. Both sides of a run
// must agree on whether compression is enabled.
type ZstdTransport struct {
	tr    Transport
	level int

	sendBuf, recvBuf []byte
}

// NewZstdTransport wraps tr with compression at the given zstd level.
func NewZstdTransport(tr Transport, level int) *ZstdTransport {
	return &ZstdTransport{tr: tr, level: level}
}

func (z *ZstdTransport) Send(rank int, msg []byte) error {
	var err error
	z.sendBuf, err = zstd.CompressLevel(z.sendBuf, msg, z.level)
	if err != nil {
		return err
	}
	return z.tr.Send(rank, z.sendBuf)
}

func (z *ZstdTransport) Recv() (int, []byte, error) {
	rank, body, err := z.tr.Recv()
	if err != nil {
		return rank, nil, err
	}

	z.recvBuf, err = zstd.Decompress(z.recvBuf, body)
	if err != nil {
		return rank, nil, err
	}
	return rank, z.recvBuf, nil
}

func (z *ZstdTransport) Close() error {
	return z.tr.Close()
}
