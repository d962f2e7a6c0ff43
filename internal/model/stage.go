package model

// Stage is a thread's position in the processing pipeline.
type Stage string

const (
	StageNew               Stage = "new"
	StagePending           Stage = "pending"
	StageResolving         Stage = "resolving_entities"
	StageQueued            Stage = "queued"
	StageQueuedForAnalysis Stage = "queued_for_analysis"
	StageAnalyzing         Stage = "analyzing"
	StageCompleted         Stage = "completed"
	StageFailed            Stage = "failed"
)

// Stages lists every known stage in pipeline order.
var Stages = []Stage{
	StageNew,
	StagePending,
	StageResolving,
	StageQueued,
	StageQueuedForAnalysis,
	StageAnalyzing,
	StageCompleted,
	StageFailed,
}

// IsKnown reports whether s is one of the enumerated stages.
func (s Stage) IsKnown() bool {
	for _, k := range Stages {
		if s == k {
			return true
		}
	}
	return false
}

func (s Stage) String() string { return string(s) }
