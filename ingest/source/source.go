// Package source provides the chunk source of the ingest pipeline: an
// open, cancellable byte stream over a chunked HTTP GET against the
// risk-streaming endpoint.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/lguimbarda/riskstream/ingest/core"
	"github.com/lguimbarda/riskstream/ingest/ingesterrors"
)

// DefaultChunkSize is the read size used when the caller does not
// specify one.
const DefaultChunkSize = 4096

// Bytes creates a Stream that performs a GET against rawURL with the
// given query parameters and emits the response body as raw byte chunks.
//
// The stream ends in exactly one of three ways:
//   - normal exhaustion: an end-of-stream sentinel is emitted, then the
//     channel closes;
//   - transport failure (request error, non-2xx status, or a mid-body
//     read error): a *ingesterrors.TransportError result is emitted,
//     then the channel closes;
//   - context cancellation: the channel closes with nothing further. The
//     request context is the stream context, so cancelling it aborts the
//     underlying connection rather than draining it.
//
// Responses compressed with gzip or zstd are decompressed transparently.
func Bytes(client *http.Client, rawURL string, query url.Values, chunkSize int) core.Stream[[]byte] {
	if client == nil {
		client = http.DefaultClient
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	return core.Emit(func(ctx context.Context) <-chan core.Result[[]byte] {
		out := make(chan core.Result[[]byte], 1)

		go func() {
			defer close(out)

			target := rawURL
			if len(query) > 0 {
				sep := "?"
				if u, err := url.Parse(rawURL); err == nil && u.RawQuery != "" {
					sep = "&"
				}
				target = rawURL + sep + query.Encode()
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
			if err != nil {
				emitTransport(ctx, out, &ingesterrors.TransportError{URL: rawURL, Err: err})
				return
			}
			req.Header.Set("Accept", "application/x-ndjson")
			req.Header.Set("Accept-Encoding", "gzip, zstd")

			resp, err := client.Do(req)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				emitTransport(ctx, out, &ingesterrors.TransportError{URL: rawURL, Err: err})
				return
			}
			defer resp.Body.Close()

			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				emitTransport(ctx, out, &ingesterrors.TransportError{URL: rawURL, StatusCode: resp.StatusCode})
				return
			}

			body, err := decompressed(resp)
			if err != nil {
				emitTransport(ctx, out, &ingesterrors.TransportError{URL: rawURL, Err: err})
				return
			}
			defer body.Close()

			buf := make([]byte, chunkSize)
			for {
				n, err := body.Read(buf)
				if n > 0 {
					chunk := make([]byte, n)
					copy(chunk, buf[:n])
					select {
					case <-ctx.Done():
						return
					case out <- core.Ok(chunk):
					}
				}
				if err == io.EOF {
					select {
					case <-ctx.Done():
					case out <- core.EndOfStream[[]byte]():
					}
					return
				}
				if err != nil {
					if ctx.Err() != nil {
						// The in-flight chunk was already discarded by
						// the select above; a cancelled stream ends
						// silently.
						return
					}
					emitTransport(ctx, out, &ingesterrors.TransportError{URL: rawURL, Err: err})
					return
				}
			}
		}()

		return out
	})
}

func emitTransport(ctx context.Context, out chan<- core.Result[[]byte], te *ingesterrors.TransportError) {
	select {
	case <-ctx.Done():
	case out <- core.Err[[]byte](te):
	}
}

// decompressed wraps the response body according to its Content-Encoding.
// Setting Accept-Encoding explicitly disables net/http's transparent
// gunzip, so both codecs are handled here.
func decompressed(resp *http.Response) (io.ReadCloser, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "", "identity":
		return resp.Body, nil
	case "gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip response: %w", err)
		}
		return zr, nil
	case "zstd":
		zr, err := zstd.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("zstd response: %w", err)
		}
		return zr.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", resp.Header.Get("Content-Encoding"))
	}
}
