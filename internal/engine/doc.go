/*
Package engine implements the lesson progression state machine.

Given a normalized script, a current step and a learner outcome, Advance
deterministically computes the next batch of chat messages and the next
cursor position. All functions are pure: no I/O, no hidden state, safe to
call repeatedly with the same inputs. Out-of-range cursor positions read
from untrusted persisted snapshots are clamped, never rejected, and no
input ever causes a panic or an error return; an unrecognized step yields
an empty batch with a nil next step.
*/
package engine
