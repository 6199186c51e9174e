/*
Package lessonloop is a deterministic progression engine for gamified
language-lesson dialogues.

A lesson is a static, pre-authored script of pedagogical modules (goal,
vocabulary, grammar drills, sentence construction, error spotting, roleplay
situations, completion) rendered as a chat stream. The engine computes, for
any cursor position and learner outcome, the next batch of messages and the
next cursor. Both calls are pure and resumable from any persisted snapshot.

# Architecture

The core follows a hexagonal layout: pure engine and repair logic in internal
packages, driven-side ports (persistence, validation oracle, locking) in
pkg/ports, and adapters (memory, Redis, HTTP oracle) in pkg/adapters. The
session package orchestrates a live attempt: optimistic rendering, a
serialized save chain, and history repair on resume.

# Usage

	sc, err := script.Load("lesson.json")
	if err != nil {
		log.Fatal(err)
	}

	eng := lessonloop.New(sc)

	// Pure engine calls:
	batch := eng.CreateInitial()
	batch = eng.Advance(*batch.Next, domain.Outcome{IsCorrect: true})

	// Or a full stateful session:
	sess := eng.Session(ports.Key{UserID: "u1", LessonID: "l1"})
	msgs, err := sess.Start(ctx)
*/
package lessonloop
