// Package vad implements chunked, worker-parallel voice-activity
// detection producing merged silence gaps in global timeline
// coordinates. Workers are isolated OS processes (cmd/achew-vad-worker)
// speaking the line-oriented JSON protocol defined here over
// stdin/stdout.
package vad

// WorkerRequest is written as a single JSON line to a worker's stdin: the
// ordered chunk files it owns plus the scan parameters.
type WorkerRequest struct {
	ChunkPaths         []string `json:"chunk_paths"`
	ChunkSeconds       float64  `json:"chunk_seconds"`
	StartChunkIndex    int      `json:"start_chunk_index"`
	ModelPath          string   `json:"model_path"`
	Threshold          float32  `json:"threshold"`
	MinSilenceDuration float64  `json:"min_silence_duration"`
	SampleRate         int      `json:"sample_rate"`
}

// ProgressMsg is emitted on stdout as "PROGRESS:{json}", throttled to at
// most once every 100ms by the worker.
type ProgressMsg struct {
	ChunkIndex int     `json:"chunk_index"`
	Percent    float64 `json:"percent"`
}

// ResultMsg is emitted on stdout as "RESULT:{json}", one per processed
// chunk, carrying that chunk's silence gaps already translated into
// global timeline coordinates.
type ResultMsg struct {
	ChunkIndex int     `json:"chunk_index"`
	Gaps       []Gap   `json:"gaps"`
	Err        string  `json:"error,omitempty"`
}

// Gap is a silence interval in global timeline coordinates, as reported
// by a single worker for a single chunk.
type Gap struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}
