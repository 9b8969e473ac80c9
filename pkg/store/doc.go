// Package store groups the artifact store backends.
//
// Backends:
//
//   - local: the local backup directory (artifact.LocalStore)
//   - s3store: an S3 bucket (artifact.RemoteStore)
//   - filesystem: a directory standing in for a bucket (artifact.RemoteStore)
//   - memory: an in-process map, for tests and dry runs (artifact.RemoteStore)
//
// New selects a remote backend from configuration.
package store
