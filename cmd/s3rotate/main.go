// s3rotate keeps periodic backups in an object store under a
// grandfather-father-son retention policy.
//
// New local backups are uploaded once into the daily tier, then promoted
// into the weekly and monthly tiers, and every tier is pruned to its limit.
//
// Usage:
//
//	# Upload and rotate every configured family once
//	s3rotate run --config /etc/s3rotate/config.yaml
//
//	# Only rotate one family, printing the report as JSON
//	s3rotate rotate --family db --output json
//
//	# Run on the configured schedules and watch local directories
//	s3rotate daemon
//
//	# Show recent runs recorded in the ledger
//	s3rotate history --family db
package main

func main() {
	Execute()
}
