// Package record defines the closed set of feed record variants and the
// parsing and classification stage that turns NDJSON lines into them.
//
// The feed discriminates records by a "type" field. Classification is an
// exhaustive mapping over the known discriminants with an explicit
// Unrecognized arm, so every valid JSON line yields exactly one variant.
package record

import (
	"context"
	"encoding/json"

	"github.com/lguimbarda/riskstream/ingest/core"
	"github.com/lguimbarda/riskstream/ingest/ingesterrors"
)

// Kind identifies a record variant.
type Kind int

const (
	KindMetadata Kind = iota
	KindBatch
	KindSummary
	KindError
	KindUnrecognized
)

func (k Kind) String() string {
	switch k {
	case KindMetadata:
		return "metadata"
	case KindBatch:
		return "batch"
	case KindSummary:
		return "summary"
	case KindError:
		return "error"
	default:
		return "unrecognized"
	}
}

// Record is the closed union of feed record variants. The concrete
// types are Metadata, Batch, Summary, FeedError, and Unrecognized.
type Record interface {
	Kind() Kind
}

// Patient is one patient-risk item from a batch. Items are opaque to
// the pipeline; the accessors below read the handful of fields the
// client library itself cares about, leniently.
type Patient map[string]any

// ID returns the patient_id field, or zero when absent.
func (p Patient) ID() int64 {
	return intField(p, "patient_id")
}

// Name returns the name field, or "" when absent.
func (p Patient) Name() string {
	s, _ := p["name"].(string)
	return s
}

// RiskLevel returns the risk_level field ("low", "medium" or "high"),
// or "" when absent.
func (p Patient) RiskLevel() string {
	s, _ := p["risk_level"].(string)
	return s
}

// RiskScore returns the risk_score field, or zero when absent.
func (p Patient) RiskScore() int64 {
	return intField(p, "risk_score")
}

// HeatWaveRisk returns the heat_wave_risk flag, or false when absent.
func (p Patient) HeatWaveRisk() bool {
	b, _ := p["heat_wave_risk"].(bool)
	return b
}

func intField(p Patient, key string) int64 {
	switch v := p[key].(type) {
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	default:
		return 0
	}
}

// Metadata is the feed-level record that may arrive once up front,
// carrying counts, estimates and the filters in effect.
type Metadata struct {
	TotalPatients int            `json:"total_patients"`
	Filters       map[string]any `json:"filters"`
}

func (Metadata) Kind() Kind { return KindMetadata }

// Batch is one slice of patient-risk items plus updated progress counters.
type Batch struct {
	Patients       []Patient `json:"patients"`
	ProcessedCount int       `json:"processed_count"`
	TotalPatients  int       `json:"total_patients"`
}

func (Batch) Kind() Kind { return KindBatch }

// Distribution is the low/medium/high tally a summary reports.
type Distribution struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

// Total returns the sum across all three levels.
func (d Distribution) Total() int {
	return d.Low + d.Medium + d.High
}

// Summary is the final tally; it terminates the session that receives it.
type Summary struct {
	TotalProcessed   int          `json:"total_processed"`
	RiskDistribution Distribution `json:"risk_distribution"`
}

func (Summary) Kind() Kind { return KindSummary }

// FeedError is a problem the feed itself reported. It is non-terminal
// from the session's perspective.
type FeedError struct {
	Message string `json:"error"`
}

func (FeedError) Kind() Kind { return KindError }

// Unrecognized is the fallback variant for a valid JSON record whose
// discriminant is unknown or missing. It carries the raw line so callers
// can log or inspect it; it never advances progress accounting.
type Unrecognized struct {
	Type string
	Raw  string
}

func (Unrecognized) Kind() Kind { return KindUnrecognized }

// envelope reads only the discriminant from a line.
type envelope struct {
	Type *string `json:"type"`
}

// Parse parses one complete line as a single feed record. A line that is
// not valid JSON yields a *ingesterrors.ParseError. Fields a variant
// requires but the feed omitted decode as zero values rather than
// failing, tolerating a partially populated feed.
func Parse(line string) (Record, error) {
	var env envelope
	if err := json.Unmarshal([]byte(line), &env); err != nil {
		if json.Valid([]byte(line)) {
			// A valid JSON value that is not an object (array, scalar)
			// has no discriminant to classify by.
			return Unrecognized{Raw: line}, nil
		}
		return nil, &ingesterrors.ParseError{Line: line, Err: err}
	}

	if env.Type == nil {
		return Unrecognized{Raw: line}, nil
	}

	switch *env.Type {
	case "metadata":
		var rec Metadata
		lenientUnmarshal(line, &rec)
		return rec, nil
	case "batch":
		var rec Batch
		lenientUnmarshal(line, &rec)
		return rec, nil
	case "summary":
		var rec Summary
		lenientUnmarshal(line, &rec)
		return rec, nil
	case "error":
		var rec FeedError
		lenientUnmarshal(line, &rec)
		return rec, nil
	default:
		return Unrecognized{Type: *env.Type, Raw: line}, nil
	}
}

// lenientUnmarshal decodes what it can and ignores mismatched fields.
// The envelope already proved the line is valid JSON, so a second
// unmarshal can only fail on field type mismatches, which the lenient
// policy treats as absent.
func lenientUnmarshal(line string, v any) {
	_ = json.Unmarshal([]byte(line), v)
}

// Decode creates a Transformer that parses each complete line into a
// classified Record. A line that fails to parse becomes an error result
// and does not stop subsequent parsing; sentinels pass through.
func Decode() core.Transformer[string, Record] {
	return core.Transmit(func(ctx context.Context, in <-chan core.Result[string]) <-chan core.Result[Record] {
		out := make(chan core.Result[Record])

		go func() {
			defer close(out)

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
					case out <- core.Err[Record](res.Error()):
					}
					continue
				}

				if res.IsSentinel() {
					select {
					case <-ctx.Done():
						return
					case out <- core.Sentinel[Record](res.Sentinel()):
					}
					continue
				}

				rec, err := Parse(res.Value())
				if err != nil {
					select {
					case <-ctx.Done():
						return
					case out <- core.Err[Record](err):
					}
					continue
				}

				select {
				case <-ctx.Done():
					return
				case out <- core.Ok(rec):
				}
			}
		}()

		return out
	})
}
