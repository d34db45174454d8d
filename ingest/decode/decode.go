// Package decode provides the chunk-decoding stage of the ingest
// pipeline: raw response bytes become text incrementally, with
// multi-byte sequences split across chunk boundaries held back until
// their remaining bytes arrive.
package decode

import (
	"context"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/lguimbarda/riskstream/ingest/core"
)

// UTF8 creates a Transformer that decodes byte chunks to text chunks.
// The concatenation of the output equals decoding the concatenation of
// the input: an incomplete trailing sequence is carried to the next
// chunk instead of being emitted as a replacement character. Only at
// the end-of-stream sentinel is any dangling partial sequence flushed,
// at which point it genuinely is malformed input.
func UTF8() core.Transformer[[]byte, string] {
	return core.Transmit(func(ctx context.Context, in <-chan core.Result[[]byte]) <-chan core.Result[string] {
		out := make(chan core.Result[string])

		go func() {
			defer close(out)

			dec := newIncremental()

			for res := range in {
				select {
				case <-ctx.Done():
					return
				default:
				}

				if res.IsError() {
					select {
					case <-ctx.Done():
						return
					case out <- core.Err[string](res.Error()):
					}
					continue
				}

				if res.IsSentinel() {
					// Flush whatever the decoder is still holding before
					// forwarding the control signal.
					if text := dec.feed(nil, true); text != "" {
						select {
						case <-ctx.Done():
							return
						case out <- core.Ok(text):
						}
					}
					select {
					case <-ctx.Done():
						return
					case out <- core.Sentinel[string](res.Sentinel()):
					}
					continue
				}

				text := dec.feed(res.Value(), false)
				if text == "" {
					continue
				}
				select {
				case <-ctx.Done():
					return
				case out <- core.Ok(text):
				}
			}
		}()

		return out
	})
}

// incremental wraps an x/text UTF-8 decoder with a carry buffer for the
// bytes the transformer could not consume yet.
type incremental struct {
	tr    transform.Transformer
	carry []byte
	dst   []byte
}

func newIncremental() *incremental {
	tr := unicode.UTF8.NewDecoder()
	tr.Reset()
	return &incremental{tr: tr, dst: make([]byte, 4096)}
}

// feed decodes p plus any carried bytes and returns the decoded text.
// With atEOF set it also drains the carry, substituting replacement
// characters for a truncated final sequence.
func (d *incremental) feed(p []byte, atEOF bool) string {
	src := p
	if len(d.carry) > 0 {
		src = append(d.carry, p...)
		d.carry = nil
	}
	if len(src) == 0 && !atEOF {
		return ""
	}

	var decoded []byte
	for {
		nDst, nSrc, err := d.tr.Transform(d.dst, src, atEOF)
		decoded = append(decoded, d.dst[:nDst]...)
		src = src[nSrc:]

		switch err {
		case nil:
			if len(src) > 0 {
				// A well-formed prefix was consumed but bytes remain;
				// keep transforming.
				continue
			}
			return string(decoded)
		case transform.ErrShortSrc:
			// Incomplete multi-byte sequence at the tail; hold it for
			// the next chunk.
			d.carry = append(d.carry[:0], src...)
			return string(decoded)
		case transform.ErrShortDst:
			d.dst = make([]byte, len(d.dst)*2)
		default:
			// The UTF-8 decoder replaces invalid input rather than
			// failing, so any other error is unreachable; treat the
			// remaining bytes as consumed to make progress.
			return string(decoded)
		}
	}
}
