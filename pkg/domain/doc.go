/*
Package domain contains the core domain models for the lessonloop engine.

It defines the fundamental entities of the lesson dialogue: the authored
Script, the Step cursor addressing an exact position within it, chat Messages
with their typed payload envelope, learner Outcomes and persisted Progress.
This package is kept pure and free of I/O, following Hexagonal Architecture
principles.

# Key Entities

  - Script: the immutable, pre-authored content tree for one lesson.
  - Step: the progression cursor (module + index/subIndex + continue-gate).
  - Message: one chat entry, plain text or a JSON payload with a "type" tag.
  - Outcome: the result of one learner action fed into the engine.
  - Progress: the per-(user, lesson) snapshot persisted between sessions.
*/
package domain
