// Package artifact defines backup artifacts, retention tiers, and the store
// capabilities the rotation engine depends on.
//
// # Key Layout
//
// Remote artifacts live under a key of the form
//
//	{family}/{tier}/{date}{extension}
//
// for example "database-prod/weekly/2020-01-13.sql.gz". Dates are rendered
// "YYYY-MM-DD", so ascending key order within a tier is chronological order.
// A store may prepend a fixed bucket prefix to every key.
//
// # Stores
//
// RemoteStore is the object-tier capability set (list, exists, upload, copy,
// delete) and LocalStore the local directory capability set (list, open,
// delete). Implementations live under pkg/store.
package artifact
