package orchestrator

import "github.com/mavik-ai/prescreen/internal/tools"

// Stage is a set of tools the engine runs concurrently. Stages execute
// in order; a stage starts only after the previous one finished.
type Stage []tools.ID

// Plan turns a required tool set into an ordered list of stages.
// Extraction runs alone first when present, since retrieval, web
// search and calculation all read the extracted document. Those three
// are mutually independent and share one stage. Synthesis always runs
// next, and report generation, when requested, consumes the synthesis
// output last. Tools that are not required get no stage.
func Plan(required []tools.ID) []Stage {
	has := make(map[tools.ID]bool, len(required))
	for _, id := range required {
		has[id] = true
	}

	var stages []Stage
	if has[tools.Extract] {
		stages = append(stages, Stage{tools.Extract})
	}

	var mid Stage
	for _, id := range []tools.ID{tools.Retrieve, tools.Web, tools.Calculate} {
		if has[id] {
			mid = append(mid, id)
		}
	}
	if len(mid) > 0 {
		stages = append(stages, mid)
	}

	stages = append(stages, Stage{tools.Synthesize})

	if has[tools.GenerateReport] {
		stages = append(stages, Stage{tools.GenerateReport})
	}
	return stages
}
