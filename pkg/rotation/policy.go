package rotation

import (
	"mercator-hq/s3rotate/pkg/artifact"
	"mercator-hq/s3rotate/pkg/datecodec"
)

// PromotionRule reports whether subject should be promoted given the date of
// the newest artifact already in the target tier.
type PromotionRule func(subject, last datecodec.Date) bool

// TierPolicy describes one remote tier: where its artifacts are promoted and
// when. A policy without Next only prunes.
type TierPolicy struct {
	Tier artifact.Tier
	Next artifact.Tier
	Rule PromotionRule
}

// Promotes reports whether the policy has a target tier.
func (p TierPolicy) Promotes() bool {
	return p.Next != "" && p.Rule != nil
}

// WeeklyThreshold is the minimum distance in days between weekly artifacts.
const WeeklyThreshold = 7

// PromoteToWeekly promotes a daily artifact lying at least WeeklyThreshold
// days from the last weekly artifact. The distance is absolute, so a
// backfilled daily older than the last weekly can promote too.
func PromoteToWeekly(daily, lastWeekly datecodec.Date) bool {
	d := daily.DaysSince(lastWeekly)
	if d < 0 {
		d = -d
	}
	return d >= WeeklyThreshold
}

// PromoteToMonthly promotes a weekly artifact at least one calendar month
// past the last monthly artifact. Month arithmetic clamps to the end of
// shorter months, so 2020-03-31 is one month past 2020-02-29.
func PromoteToMonthly(weekly, lastMonthly datecodec.Date) bool {
	return weekly.AddMonths(-1).Compare(lastMonthly) >= 0
}

// Cascade is the default tier order.
var Cascade = []TierPolicy{
	{Tier: artifact.TierDaily, Next: artifact.TierWeekly, Rule: PromoteToWeekly},
	{Tier: artifact.TierWeekly, Next: artifact.TierMonthly, Rule: PromoteToMonthly},
	{Tier: artifact.TierMonthly},
}

// policyFor returns the policy governing tier.
func policyFor(cascade []TierPolicy, tier artifact.Tier) (TierPolicy, bool) {
	for _, p := range cascade {
		if p.Tier == tier {
			return p, true
		}
	}
	return TierPolicy{}, false
}

// decision is the planned outcome for one source artifact.
type decision struct {
	source *artifact.Artifact
	// promote is set when the rule selected the artifact.
	promote bool
	// existing is the target artifact already holding the same name.
	existing *artifact.Artifact
	// err is the date parse failure that blocked the evaluation.
	err error
	// key of the artifact whose date failed to parse
	failedKey string
}

// planPromotions folds over the ascending source listing, carrying the
// newest target artifact as cursor. Each promoted artifact becomes the new
// cursor. A subject or cursor whose date does not parse is never promoted.
func planPromotions(source, target []*artifact.Artifact, rule PromotionRule) []decision {
	present := make(map[string]*artifact.Artifact, len(target))
	for _, a := range target {
		present[a.Name()] = a
	}

	var cursor *artifact.Artifact
	if len(target) > 0 {
		cursor = target[len(target)-1]
	}

	plan := make([]decision, 0, len(source))
	for _, subject := range source {
		d := evaluate(subject, cursor, rule)
		if d.promote {
			d.existing = present[subject.Name()]
			cursor = subject
		}
		plan = append(plan, d)
	}
	return plan
}

func evaluate(subject, cursor *artifact.Artifact, rule PromotionRule) decision {
	d := decision{source: subject}
	if subject == nil {
		return d
	}

	subjectDate, err := subject.Date()
	if err != nil {
		d.err, d.failedKey = err, subject.Key
		return d
	}
	if cursor == nil {
		d.promote = true
		return d
	}

	cursorDate, err := cursor.Date()
	if err != nil {
		d.err, d.failedKey = err, cursor.Key
		return d
	}

	d.promote = rule(subjectDate, cursorDate)
	return d
}

// pruneCount returns how many of count artifacts exceed limit.
func pruneCount(count, limit int) int {
	if limit < 0 {
		limit = 0
	}
	if count <= limit {
		return 0
	}
	return count - limit
}
