// Package session orchestrates one agent run against one target repository.
//
// The Coordinator prepares each incoming observation (truncation, error
// classification, duplicate-query suppression), decides whether to consult
// the experience store, and renders the candidate-fixes block for the
// prompt assembler. The Tracker attributes cross-turn outcomes back to the
// entries that were surfaced: a suggestion that reappears next turn failed,
// one that disappears succeeded.
//
// Both types hold per-session mutable state and must not be shared across
// concurrent sessions: construct one pair per run and Close the
// coordinator at session end. Closing one session never affects another;
// there are no shared singletons.
package session
