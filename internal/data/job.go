package data

import "time"

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCanceled  JobStatus = "canceled"
)

// JobOptions mirror the optional pipeline stages and their knobs.
type JobOptions struct {
	RetrieveFasta      bool   `json:"retrieve_fasta"`
	DownloadStructures bool   `json:"download_structures"`
	TrimStructures     bool   `json:"trim_structures"`
	AcceptCustomPDBs   bool   `json:"accept_custom_pdbs,omitempty"`
	StrictCustomPDBs   bool   `json:"custom_pdb_strict,omitempty"`
	PDBSourceDir       string `json:"pdb_source_dir,omitempty"`
	NotifyEmail        string `json:"notify_email,omitempty"`
}

// Job is one pipeline run managed by the serve mode.
type Job struct {
	ID         string     `json:"id"`
	Name       string     `json:"name,omitempty"`
	Accessions []string   `json:"accessions"`
	Entries    []string   `json:"entries"`
	Options    JobOptions `json:"options"`
	Status     JobStatus  `json:"status"`
	Progress   float64    `json:"progress"`
	Message    string     `json:"message,omitempty"`
	Error      string     `json:"error,omitempty"`
	OutputDir  string     `json:"output_dir,omitempty"`
	Created    time.Time  `json:"created"`
	Started    time.Time  `json:"started,omitzero"`
	Finished   time.Time  `json:"finished,omitzero"`
	Version    int        `json:"-"`
}

// Finished job states cannot transition any further.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCanceled
}

// JobCounts summarises the job table for the stats endpoint.
type JobCounts struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Canceled  int `json:"canceled"`
}
