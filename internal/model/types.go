package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// NeuronRecord is the persisted form of one neuron: its threshold and one
// weight per neuron of the previous layer.
type NeuronRecord struct {
	Threshold float64   `json:"threshold"`
	Weights   []float64 `json:"weights"`
}

// NetworkRecord stores weights only. Layer 0 is implied by Inputs.
type NetworkRecord struct {
	Inputs int              `json:"inputs"`
	Layers [][]NeuronRecord `json:"layers"`
}

// Snapshot is the best network of a run as of some generation.
type Snapshot struct {
	VersionedRecord
	RunID      string        `json:"run_id"`
	Generation int           `json:"generation"`
	Fitness    float64       `json:"fitness"`
	Network    NetworkRecord `json:"network"`
}

type GenerationDiagnostics struct {
	Generation   int     `json:"generation"`
	BestFitness  float64 `json:"best_fitness"`
	MeanFitness  float64 `json:"mean_fitness"`
	WorstFitness float64 `json:"worst_fitness"`
	Failures     int     `json:"failures"`
	Episodes     int     `json:"episodes"`
	DurationMS   int64   `json:"duration_ms"`
}

type RunSummary struct {
	VersionedRecord
	RunID       string  `json:"run_id"`
	Scape       string  `json:"scape"`
	Population  int     `json:"population"`
	Generations int     `json:"generations"`
	BestFitness float64 `json:"best_fitness"`
	StartedAt   string  `json:"started_at"`
}
