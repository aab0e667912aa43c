// Package queue streams scan lifecycle events through Redis.
//
// Every event is published to a per-scan pub/sub channel for live
// consumers and appended to a per-scan history list so late joiners can
// replay the run. A small status key tracks the scan's coarse state.
//
// Key layout:
//
//	scan:<id>:events   pub/sub channel carrying Event JSON
//	scan:<id>:history  list of Event JSON in publish order
//	scan:<id>:status   string scan status
package queue
