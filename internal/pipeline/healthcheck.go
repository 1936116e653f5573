package pipeline

import (
	"encoding/json"

	"github.com/floodlib/ripple-engine/internal/registry"
)

// TestHueyHealthInputs is test-huey-health's registered input spec: it
// takes no fields, so the spec is empty.
var TestHueyHealthInputs = []registry.InputSpec{}

// TestHueyHealth is the Process Registry's health-check process, per
// spec.md §2 component D. It does no hydraulic work; a caller submits it
// with an empty input document to confirm the job store, worker pool, and
// process supervisor round-trip a job end to end (accepted, running,
// successful, with a {} result document).
func TestHueyHealth(_ *registry.StageEnv, _ json.RawMessage) (any, error) {
	return struct{}{}, nil
}
