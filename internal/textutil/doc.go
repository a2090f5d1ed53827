// Package textutil provides deterministic text normalization helpers, chiefly
// the platform-limit truncation applied to post content before delivery.
package textutil
