// Package insights extracts reviewable takeaways from project transcripts
// and drafts platform posts from approved ones, using an OpenRouter-compatible
// chat completion API in JSON mode.
package insights
