// Package queue provides SQLite-backed persistence for the content pipeline:
// projects with their lifecycle stage, extracted insights, generated posts,
// scheduled deliveries, and platform account credentials.
//
// Stage mutations use compare-and-swap semantics so concurrent actors cannot
// race a project through conflicting transitions, and the publish worker
// claims scheduled deliveries with conditional updates for the same reason.
package queue
