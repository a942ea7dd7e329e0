// Package pipeline runs a single file mutation end to end.
//
// A write forks the request body into the storage backend and a content
// sampler, stats the stored file, appends the resulting event to the log and
// hands it to the subscription registry:
//
//	Idle → Persisting → Stating → LoggingAppend → Broadcasting → Done
//
// A failure while persisting or stating aborts before anything is logged. A
// failure to append is reported as ErrLogAppend: the file has changed but the
// feed does not know about it.
//
// Mutations of the same path are serialized. Appends and broadcasts are
// serialized across all paths so subscribers see log order.
package pipeline
