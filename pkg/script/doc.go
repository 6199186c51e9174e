/*
Package script decodes, normalizes and validates authored lesson scripts.

Raw scripts come from the content pipeline as JSON and carry two legacy shape
ambiguities: a constructor task's "correct" field may be a string or a string
array, and a situations scenario may carry flat ai/task/expected_answer fields
instead of a steps list. Normalization resolves both at load time so the
engine only ever sees one canonical shape: every scenario has a non-empty
steps list, every task has a non-empty accepted-answer list, and the
"<lesson_completed>" task sentinel becomes an explicit completion flag on the
step.

Validate rejects scripts the engine could not progress through, notably a
scenario whose step list is still empty after normalization. Rejecting at
load time replaces the silent stall such content would otherwise cause.
*/
package script
