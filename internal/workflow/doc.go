// Package workflow coordinates the content pipeline. The Pipeline applies
// lifecycle triggers with compare-and-swap persistence and runs their side
// effects; the ContentWorker drives the AI stages; the Worker delivers due
// scheduled posts and feeds delivery outcomes back into project stages.
package workflow
