package rotation

import (
	"path/filepath"
	"time"

	"mercator-hq/s3rotate/pkg/artifact"
)

// Run statuses recorded in reports, metrics and the ledger.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Failure stages.
const (
	StageUpload  = "upload"
	StagePromote = "promote"
)

// Event actions.
const (
	ActionUpload      = "upload"
	ActionPromote     = "promote"
	ActionSkipPromote = "promote_skipped"
	ActionDelete      = "delete"
	ActionParseFail   = "parse_failure"
)

// Promotion is one artifact copied into the next tier.
type Promotion struct {
	Source *artifact.Artifact `json:"source"`
	Target *artifact.Artifact `json:"target"`
	// Existing is set when the target was already present and no copy was made.
	Existing bool `json:"existing,omitempty"`
}

// Deletion is one artifact or local file removed by pruning.
type Deletion struct {
	Tier artifact.Tier `json:"tier"`
	Key  string        `json:"key"`
}

// Failure is a file or key whose date could not be derived.
type Failure struct {
	Stage  string `json:"stage"`
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// Report collects what a run did.
type Report struct {
	RunID      string    `json:"run_id,omitempty"`
	Family     string    `json:"family"`
	Trigger    string    `json:"trigger,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Uploaded   []*artifact.Artifact `json:"uploaded,omitempty"`
	Promotions []Promotion          `json:"promotions,omitempty"`
	Deleted    []Deletion           `json:"deleted,omitempty"`

	// Skipped lists local files ignored by the uploader.
	Skipped []Failure `json:"skipped,omitempty"`
	// Failures lists remote keys left unpromoted because a date did not parse.
	Failures []Failure `json:"failures,omitempty"`

	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// NewReport creates an empty report for family.
func NewReport(family string) *Report {
	return &Report{Family: family, StartedAt: time.Now()}
}

// Finish stamps the report with its end time and outcome.
func (r *Report) Finish(err error) {
	r.FinishedAt = time.Now()
	r.Status = StatusSuccess
	r.Error = ""
	if err != nil {
		r.Status = StatusFailed
		r.Error = err.Error()
	}
}

// Duration returns how long the run took.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Copied returns the promotions that actually copied data.
func (r *Report) Copied() []Promotion {
	var out []Promotion
	for _, p := range r.Promotions {
		if !p.Existing {
			out = append(out, p)
		}
	}
	return out
}

// DeletedIn returns the keys pruned from tier, oldest first.
func (r *Report) DeletedIn(tier artifact.Tier) []string {
	var out []string
	for _, d := range r.Deleted {
		if d.Tier == tier {
			out = append(out, d.Key)
		}
	}
	return out
}

// Event is a flattened report entry, as stored by the ledger.
type Event struct {
	Action string        `json:"action"`
	Tier   artifact.Tier `json:"tier"`
	Key    string        `json:"key"`
	Detail string        `json:"detail,omitempty"`
}

// Events flattens the report in the order things happened within each kind.
func (r *Report) Events() []Event {
	events := make([]Event, 0, len(r.Uploaded)+len(r.Promotions)+len(r.Deleted)+len(r.Skipped)+len(r.Failures))
	for _, a := range r.Uploaded {
		events = append(events, Event{Action: ActionUpload, Tier: a.Tier, Key: a.Key})
	}
	for _, f := range r.Skipped {
		events = append(events, Event{Action: ActionParseFail, Tier: artifact.TierLocal, Key: f.Key, Detail: f.Reason})
	}
	for _, p := range r.Promotions {
		action := ActionPromote
		if p.Existing {
			action = ActionSkipPromote
		}
		events = append(events, Event{Action: action, Tier: p.Target.Tier, Key: p.Target.Key, Detail: p.Source.Key})
	}
	for _, f := range r.Failures {
		events = append(events, Event{Action: ActionParseFail, Key: f.Key, Detail: f.Reason})
	}
	for _, d := range r.Deleted {
		events = append(events, Event{Action: ActionDelete, Tier: d.Tier, Key: d.Key})
	}
	return events
}

func localKey(dir, name string) string {
	return filepath.Join(dir, name)
}
