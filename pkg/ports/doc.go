/*
Package ports defines the driven-side interfaces of the lessonloop engine:
message and progress persistence, the answer-validation oracle and
distributed locking. Adapters under pkg/adapters implement them; the core
engine and the session orchestrator depend only on these contracts.
*/
package ports
