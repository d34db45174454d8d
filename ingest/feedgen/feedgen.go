// Package feedgen generates synthetic patient-risk NDJSON feeds. The
// output is valid input for the ingest pipeline, which makes the
// generator the backing for the examples and the end-to-end tests: a
// metadata record, batches of fabricated patients, and a final summary.
package feedgen

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"

	"github.com/lguimbarda/riskstream/ingest/record"
)

// Generator configures a synthetic feed. The zero value produces a
// small feed with defaults filled in by normalize.
type Generator struct {
	// Total is the number of patients in the feed.
	Total int

	// BatchSize is the number of patients per batch record.
	BatchSize int

	// Seed makes the fabricated patients deterministic.
	Seed int64

	// ErrorEvery injects a feed error record before every Nth batch.
	// Zero disables injection.
	ErrorEvery int
}

func (g Generator) normalize() Generator {
	if g.Total <= 0 {
		g.Total = 20
	}
	if g.BatchSize <= 0 {
		g.BatchSize = 5
	}
	return g
}

// Patients fabricates the full patient list for the feed.
func (g Generator) Patients() []record.Patient {
	g = g.normalize()
	rng := rand.New(rand.NewSource(g.Seed))

	patients := make([]record.Patient, 0, g.Total)
	for i := 0; i < g.Total; i++ {
		level, score := riskFor(rng)
		patients = append(patients, record.Patient{
			"patient_id":     float64(i + 1),
			"name":           fmt.Sprintf("Patient %03d", i+1),
			"age":            float64(17 + rng.Intn(24)),
			"weeks_pregnant": float64(4 + rng.Intn(36)),
			"zip_code":       fmt.Sprintf("%05d", 10000+rng.Intn(80000)),
			"risk_level":     level,
			"risk_score":     float64(score),
			"heat_wave_risk": score >= 6,
		})
	}
	return patients
}

// riskFor draws a weighted risk level: roughly half low, a third
// medium, the rest high, echoing the distribution the demo data aims at.
func riskFor(rng *rand.Rand) (string, int) {
	switch n := rng.Intn(100); {
	case n < 50:
		return "low", 1 + rng.Intn(3)
	case n < 85:
		return "medium", 4 + rng.Intn(2)
	default:
		return "high", 6 + rng.Intn(4)
	}
}

// WriteTo writes the feed as NDJSON: one metadata record, then batches,
// then the summary. It implements io.WriterTo so a feed can be rendered
// into a buffer, a file, or a streaming HTTP response.
func (g Generator) WriteTo(w io.Writer) (int64, error) {
	g = g.normalize()
	patients := g.Patients()

	var written int64
	emit := func(v any) error {
		line, err := json.Marshal(v)
		if err != nil {
			return err
		}
		n, err := w.Write(append(line, '\n'))
		written += int64(n)
		return err
	}

	if err := emit(map[string]any{
		"type":           "metadata",
		"total_patients": len(patients),
	}); err != nil {
		return written, err
	}

	var dist record.Distribution
	processed := 0
	batchIndex := 0
	for start := 0; start < len(patients); start += g.BatchSize {
		end := min(start+g.BatchSize, len(patients))
		batch := patients[start:end]
		batchIndex++

		if g.ErrorEvery > 0 && batchIndex%g.ErrorEvery == 0 {
			if err := emit(map[string]any{
				"type":  "error",
				"error": fmt.Sprintf("synthetic feed hiccup before batch %d", batchIndex),
			}); err != nil {
				return written, err
			}
		}

		processed += len(batch)
		for _, p := range batch {
			switch p.RiskLevel() {
			case "low":
				dist.Low++
			case "medium":
				dist.Medium++
			case "high":
				dist.High++
			}
		}

		if err := emit(map[string]any{
			"type":            "batch",
			"patients":        batch,
			"processed_count": processed,
			"total_patients":  len(patients),
		}); err != nil {
			return written, err
		}
	}

	return written, emit(map[string]any{
		"type":            "summary",
		"total_processed": processed,
		"risk_distribution": map[string]int{
			"low":    dist.Low,
			"medium": dist.Medium,
			"high":   dist.High,
		},
	})
}

// Handler serves the feed as a chunked NDJSON response, flushing after
// every line so clients observe true streaming. A batch_size query
// parameter overrides the generator's batch size, mirroring the real
// endpoint's forwarded parameters.
func (g Generator) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gen := g.normalize()
		if bs, err := strconv.Atoi(r.URL.Query().Get("batch_size")); err == nil && bs > 0 {
			gen.BatchSize = bs
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		w.WriteHeader(http.StatusOK)

		flusher, _ := w.(http.Flusher)
		_, _ = gen.WriteTo(flushWriter{w: w, flusher: flusher})
	})
}

type flushWriter struct {
	w       io.Writer
	flusher http.Flusher
}

func (fw flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if fw.flusher != nil {
		fw.flusher.Flush()
	}
	return n, err
}
