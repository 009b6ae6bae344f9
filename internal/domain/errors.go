package domain

import "errors"

// ErrRetrievalUnavailable reports that every query variant failed against the
// embedder or the vector index. A single failed variant only drops that
// variant's contribution; this error means nothing was retrievable at all.
var ErrRetrievalUnavailable = errors.New("retrieval unavailable")

// ErrAnswerGeneration reports that the final synthesis call failed. It is the
// one external call with no degrade path.
var ErrAnswerGeneration = errors.New("could not generate an answer")
