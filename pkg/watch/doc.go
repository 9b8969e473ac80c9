// Package watch turns fsnotify events into debounced change notifications.
//
// The daemon watches each family's local directory to start a run as soon
// as a backup lands, and the configuration file to reload it.
//
// Directory watchers for backups report only Create and Rename, so the
// deletions a rotation makes do not start another run. Before the handler
// runs, the new files must keep their size for the Settle interval. A backup
// job that can pause longer than that while writing should write to a hidden
// temporary name and rename it into place when done.
package watch
