package models

import "errors"

var (
	ErrProviderLoad = errors.New("provider load failed")
	ErrIngestion    = errors.New("ingestion failed")
	ErrNotReady     = errors.New("no document has been ingested")
	ErrGeneration   = errors.New("generation failed")
	ErrIndex        = errors.New("vector index error")

	ErrInvalidQuestion = errors.New("question is empty")
)
