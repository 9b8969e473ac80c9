package main

import (
	"strconv"
	"time"

	"mercator-hq/s3rotate/pkg/artifact"
	"mercator-hq/s3rotate/pkg/cli"
	"mercator-hq/s3rotate/pkg/ledger"
	"mercator-hq/s3rotate/pkg/rotation"
)

// reportList renders one row per run.
type reportList []*rotation.Report

func (l reportList) Table() cli.Table {
	t := cli.Table{Headers: []string{"FAMILY", "STATUS", "UPLOADED", "PROMOTED", "DELETED", "FAILURES", "DURATION", "ERROR"}}
	for _, r := range l {
		t.Rows = append(t.Rows, []string{
			r.Family,
			r.Status,
			strconv.Itoa(len(r.Uploaded)),
			strconv.Itoa(len(r.Copied())),
			strconv.Itoa(len(r.Deleted)),
			strconv.Itoa(len(r.Failures) + len(r.Skipped)),
			r.Duration().Round(time.Millisecond).String(),
			r.Error,
		})
	}
	return t
}

// reportEvents flattens reports into their events.
type reportEvents []*rotation.Report

func (l reportEvents) Table() cli.Table {
	t := cli.Table{Headers: []string{"FAMILY", "ACTION", "TIER", "KEY", "DETAIL"}}
	for _, r := range l {
		for _, ev := range r.Events() {
			t.Rows = append(t.Rows, []string{r.Family, ev.Action, string(ev.Tier), ev.Key, ev.Detail})
		}
	}
	return t
}

// artifactList renders uploaded artifacts.
type artifactList []*artifact.Artifact

func (l artifactList) Table() cli.Table {
	t := cli.Table{Headers: []string{"FAMILY", "TIER", "KEY", "SIZE"}}
	for _, a := range l {
		t.Rows = append(t.Rows, []string{a.Family, string(a.Tier), a.Key, strconv.FormatInt(a.Size, 10)})
	}
	return t
}

// runList renders ledger runs.
type runList []ledger.Run

func (l runList) Table() cli.Table {
	t := cli.Table{Headers: []string{"ID", "FAMILY", "TRIGGER", "STARTED", "STATUS", "UPLOADED", "PROMOTED", "DELETED", "FAILURES", "ERROR"}}
	for _, r := range l {
		t.Rows = append(t.Rows, []string{
			r.ID,
			r.Family,
			r.Trigger,
			r.StartedAt.Format(time.RFC3339),
			r.Status,
			strconv.Itoa(r.Uploaded),
			strconv.Itoa(r.Promoted),
			strconv.Itoa(r.Deleted),
			strconv.Itoa(r.Failures),
			r.Error,
		})
	}
	return t
}

// eventList renders the events of one ledger run.
type eventList []rotation.Event

func (l eventList) Table() cli.Table {
	t := cli.Table{Headers: []string{"ACTION", "TIER", "KEY", "DETAIL"}}
	for _, ev := range l {
		t.Rows = append(t.Rows, []string{ev.Action, string(ev.Tier), ev.Key, ev.Detail})
	}
	return t
}

// familyList renders configured families for validate.
type familyList []familyRow

type familyRow struct {
	Name     string          `json:"name"`
	LocalDir string          `json:"local_dir"`
	Schedule string          `json:"schedule"`
	Watch    bool            `json:"watch"`
	Limits   artifact.Limits `json:"limits"`
}

func (l familyList) Table() cli.Table {
	t := cli.Table{Headers: []string{"FAMILY", "LOCAL DIR", "SCHEDULE", "WATCH", "LOCAL", "DAILY", "WEEKLY", "MONTHLY"}}
	for _, f := range l {
		schedule := f.Schedule
		if schedule == "" {
			schedule = "-"
		}
		t.Rows = append(t.Rows, []string{
			f.Name,
			f.LocalDir,
			schedule,
			strconv.FormatBool(f.Watch),
			strconv.Itoa(f.Limits.Local),
			strconv.Itoa(f.Limits.Daily),
			strconv.Itoa(f.Limits.Weekly),
			strconv.Itoa(f.Limits.Monthly),
		})
	}
	return t
}
