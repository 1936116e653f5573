package pipeline

import (
	"encoding/json"
	"math"

	"github.com/floodlib/ripple-engine/internal/rasio"
	"github.com/floodlib/ripple-engine/internal/reachlayout"
	"github.com/floodlib/ripple-engine/internal/registry"
	"github.com/floodlib/ripple-engine/internal/stageerr"
)

// ComputeConflationMetricsInput is compute_conflation_metrics's input document.
type ComputeConflationMetricsInput struct {
	SourceDir string `json:"source_dir"`
}

// ComputeConflationMetricsInputs is compute_conflation_metrics's registered input spec.
var ComputeConflationMetricsInputs = []registry.InputSpec{
	{Name: "source_dir", Domain: registry.DomainStringPath, Required: true},
}

// ComputeConflationMetrics recomputes per-reach summary statistics from an
// existing conflation document without re-running conflate_model, per
// spec.md §4.6.3. It is idempotent: running it twice on the same inputs
// produces the same document.
func ComputeConflationMetrics(env *registry.StageEnv, raw json.RawMessage) (any, error) {
	var in ComputeConflationMetricsInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, stageerr.New(stageerr.KindInvalidInput, "malformed input: %s", err.Error())
	}

	model := reachlayout.NewSourceModel(in.SourceDir, sourceModelName(in.SourceDir))

	var doc ConflationDocument
	if err := rasio.ReadJSON(model.ConflationDocument(), &doc); err != nil {
		return nil, stageerr.New(stageerr.KindPrecondition, "no conflation document for %q, run conflate_model first: %s", in.SourceDir, err.Error())
	}

	for id, reach := range doc.Reaches {
		if reach.Eclipsed || reach.USXS == nil || reach.DSXS == nil {
			continue
		}

		var m ConflationMetrics
		m.XS.CenterlineOffset = math.Abs(reach.USXS.MinElevation - reach.DSXS.MinElevation)
		m.XS.ThalwegOffset = math.Abs(reach.USXS.MaxElevation - reach.DSXS.MaxElevation)

		rasLength := math.Abs(reach.DSXS.MaxElevation - reach.USXS.MaxElevation)
		networkLength := reach.Metrics.Lengths.Network

		m.Lengths.RAS = rasLength
		m.Lengths.Network = networkLength

		if networkLength != 0 {
			m.Lengths.NetworkToRASRatio = rasLength / networkLength
		}

		m.Coverage.Start = reach.Metrics.Coverage.Start
		m.Coverage.End = reach.Metrics.Coverage.End

		reach.Metrics = m
		doc.Reaches[id] = reach
	}

	if err := rasio.WriteJSON(model.ConflationDocument(), &doc); err != nil {
		return nil, stageerr.Internal(err.Error(), "failed to write conflation document")
	}

	return &doc, nil
}
