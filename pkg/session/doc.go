/*
Package session orchestrates a live lesson attempt.

The Orchestrator owns the in-memory message array and the current step,
drives the progression engine on each learner action and persists every
emitted message through a serialized save chain. Persistence is optimistic:
messages render (and return to callers) immediately, the store's confirmation
is reconciled into the optimistic entry later by role and text. On load,
history repair reconciles persisted messages against the script before the
session resumes.

Concurrency model: a single mutex guards the live state; an in-flight flag
rejects a new answer while a previous one is still being validated, and a
session epoch counter invalidates async results that land after a restart.
All persistence writes for one attempt flow through one worker goroutine, so
writes can never reorder.
*/
package session
