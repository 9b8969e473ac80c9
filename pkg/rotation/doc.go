// Package rotation uploads local backups and rotates them through the remote
// daily, weekly and monthly tiers.
//
// # Flow
//
// A run for one family is an upload followed by a rotation:
//
//	Uploader.Upload   local dir -> daily tier, newest first, stops at the first
//	                  file already uploaded
//	Rotator.Rotate    RotateLocal, RotateDaily, RotateWeekly, RotateMonthly
//
// The remote steps share one promote-and-prune routine driven by the Cascade:
//
//	daily   -> weekly   when the daily is at least 7 days from the last weekly
//	weekly  -> monthly  when the weekly is at least one calendar month past the last monthly
//	monthly             prune only
//
// Promotion copies, it never moves. Pruning deletes the oldest artifacts of a
// tier until its limit is met.
//
// # Concurrency
//
// Uploader and Rotator are not safe for concurrent runs of the same family.
// Manager serializes runs per family with a keyed mutex and lets different
// families proceed in parallel.
package rotation
