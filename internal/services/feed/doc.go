// Package feed serves mutation feed subscriptions on top of the event log and
// the subscription registry.
//
// A subscription registers with the registry, reads the log head, then
// replays the backlog up to that head. An event committed in between is
// seen at least once, and events appended between Register and the head
// read may arrive twice. Events carry Seq so consumers can drop repeats.
//
//	svc, err := feed.New(feed.Options{Log: store, Registry: reg})
//	err = svc.Subscribe(feed.SubscribeOptions{Since: &since, Hello: true}, sink)
package feed
