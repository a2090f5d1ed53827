// Package notifications delivers push notifications for pipeline events via
// ntfy. When no topic is configured the service is a noop, so callers never
// guard their notification calls.
package notifications
