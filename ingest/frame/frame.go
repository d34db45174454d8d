// Package frame provides the line-framing stage of the ingest pipeline.
// Decoded text chunks are accumulated and only complete,
// newline-terminated lines are emitted; the trailing fragment is kept as
// residue until more text arrives or the stream ends.
package frame

import (
	"context"
	"strings"

	"github.com/lguimbarda/riskstream/ingest/core"
)

// Lines creates a Transformer that turns text chunks into complete lines.
// Lines are emitted in the exact order their bytes arrived regardless of
// how chunk boundaries fall. A trailing "\r" is stripped so CRLF feeds
// frame the same as LF feeds.
//
// The residue is flushed exactly once, when the upstream end-of-stream
// sentinel arrives: non-whitespace residue becomes one final line,
// whitespace-only residue is discarded. Residue is never flushed on
// cancellation or after a transport error, because more bytes could have
// arrived had the stream continued.
func Lines() core.Transformer[string, string] {
	return core.Transmit(func(ctx context.Context, in <-chan core.Result[string]) <-chan core.Result[string] {
		out := make(chan core.Result[string])

		go func() {
			defer close(out)

			var residue strings.Builder

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
					case out <- res:
					}
					continue
				}

				if res.IsSentinel() {
					if line := strings.TrimSuffix(residue.String(), "\r"); strings.TrimSpace(line) != "" {
						select {
						case <-ctx.Done():
							return
						case out <- core.Ok(line):
						}
					}
					residue.Reset()
					select {
					case <-ctx.Done():
						return
					case out <- res:
					}
					continue
				}

				residue.WriteString(res.Value())
				buffered := residue.String()
				if !strings.Contains(buffered, "\n") {
					continue
				}

				fragments := strings.Split(buffered, "\n")
				last := fragments[len(fragments)-1]
				for _, line := range fragments[:len(fragments)-1] {
					line = strings.TrimSuffix(line, "\r")
					if line == "" {
						// Blank lines carry no record; skip them rather
						// than handing empty input to the parser.
						continue
					}
					select {
					case <-ctx.Done():
						return
					case out <- core.Ok(line):
					}
				}

				residue.Reset()
				residue.WriteString(last)
			}
		}()

		return out
	})
}
