// Package manifest provides loading and validation of research manifests.
//
// A research manifest is a YAML or JSON file that configures a one-shot
// research run: the query, breadth/depth budgets, clarifying answers,
// source filtering, and output/archive destinations.
//
// Manifests are validated against a JSON Schema to ensure correctness
// before execution. The schema enforces strict typing and disallows
// unknown properties.
//
// Example manifest (YAML):
//
//	version: "1.0"
//	research:
//	  query: "impact of solid state batteries on EV adoption"
//	  breadth: 4
//	  depth: 2
//	  questions:
//	    - question: "Which region matters most?"
//	      answer: "Global, with a focus on China and the EU"
//	sources:
//	  block:
//	    - "**/pinterest.com/**"
//	output:
//	  destination: report.md
//	  trace: trace.jsonl
package manifest

// Manifest represents a validated research manifest.
type Manifest struct {
	// Schema is an optional JSON Schema reference for editor support.
	Schema string `json:"$schema,omitempty" yaml:"$schema,omitempty"`

	// Version is the manifest schema version. Must be "1.0".
	Version string `json:"version" yaml:"version"`

	// Research configures the research run itself.
	Research ResearchConfig `json:"research" yaml:"research"`

	// Sources configures result URL filtering (optional).
	Sources SourcesConfig `json:"sources,omitempty" yaml:"sources,omitempty"`

	// Output configures report and trace destinations (optional).
	Output OutputConfig `json:"output,omitempty" yaml:"output,omitempty"`

	// Archive configures report archival (optional).
	Archive *ArchiveConfig `json:"archive,omitempty" yaml:"archive,omitempty"`
}

// ResearchConfig configures the research run.
type ResearchConfig struct {
	// Query is the research topic or question. Required.
	Query string `json:"query" yaml:"query"`

	// Breadth is the initial fan-out budget, 1-5. Default: 4.
	Breadth int `json:"breadth,omitempty" yaml:"breadth,omitempty"`

	// Depth is the initial recursion budget, 1-5. Default: 2.
	Depth int `json:"depth,omitempty" yaml:"depth,omitempty"`

	// DirectSearch skips the recursive engine and runs grounded search
	// only. Default: false.
	DirectSearch bool `json:"direct_search,omitempty" yaml:"direct_search,omitempty"`

	// RequestedBy is the requester identity recorded on the job. Optional.
	RequestedBy string `json:"requested_by,omitempty" yaml:"requested_by,omitempty"`

	// Questions are clarifying question/answer pairs, at most 5.
	Questions []QuestionAnswer `json:"questions,omitempty" yaml:"questions,omitempty"`
}

// QuestionAnswer is one clarifying exchange.
type QuestionAnswer struct {
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer,omitempty" yaml:"answer,omitempty"`
}

// SourcesConfig configures result URL filtering by glob patterns.
type SourcesConfig struct {
	// Allow are glob patterns result URLs must match (at least one).
	// Empty means allow all.
	Allow []string `json:"allow,omitempty" yaml:"allow,omitempty"`

	// Block are glob patterns result URLs must not match. Optional.
	Block []string `json:"block,omitempty" yaml:"block,omitempty"`
}

// OutputConfig configures report and trace destinations.
type OutputConfig struct {
	// Destination is "stdout" or a file path. Default: "stdout".
	Destination string `json:"destination,omitempty" yaml:"destination,omitempty"`

	// Trace is "none", "stderr", or a file path for the JSONL trace.
	// Default: "none".
	Trace string `json:"trace,omitempty" yaml:"trace,omitempty"`
}

// ArchiveConfig configures report archival.
type ArchiveConfig struct {
	// Backend is "file" or "s3".
	Backend string `json:"backend" yaml:"backend"`

	// Dir is the directory for the file backend.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`

	// Bucket is the bucket for the s3 backend.
	Bucket string `json:"bucket,omitempty" yaml:"bucket,omitempty"`

	// Prefix is prepended to report keys in the s3 backend.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`

	// Region is the AWS region. Optional.
	Region string `json:"region,omitempty" yaml:"region,omitempty"`

	// Endpoint is a custom endpoint for S3-compatible stores. Optional.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	// Profile is the AWS credential profile name. Optional.
	Profile string `json:"profile,omitempty" yaml:"profile,omitempty"`

	// ForcePathStyle forces path-style URLs for S3-compatible stores.
	ForcePathStyle bool `json:"force_path_style,omitempty" yaml:"force_path_style,omitempty"`
}

// Defaults for optional research fields.
const (
	DefaultBreadth     = 4
	DefaultDepth       = 2
	DefaultDestination = "stdout"
	DefaultTrace       = "none"
)

// Supported archive backends.
const (
	ArchiveBackendFile = "file"
	ArchiveBackendS3   = "s3"
)

// ApplyDefaults fills optional fields with their documented defaults.
func (m *Manifest) ApplyDefaults() {
	if m.Research.Breadth == 0 {
		m.Research.Breadth = DefaultBreadth
	}
	if m.Research.Depth == 0 {
		m.Research.Depth = DefaultDepth
	}
	if m.Output.Destination == "" {
		m.Output.Destination = DefaultDestination
	}
	if m.Output.Trace == "" {
		m.Output.Trace = DefaultTrace
	}
}
