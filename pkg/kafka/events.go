package kafka

import (
	"context"
	"fmt"
	"time"
)

// IndexRotated is published by the indexing side after searchd has
// rotated an index to a new generation.
type IndexRotated struct {
	Index     string    `json:"index"`
	RotatedAt time.Time `json:"rotated_at"`
}

// OnIndexRotated returns a handler that decodes IndexRotated events and
// passes them to fn.
func OnIndexRotated(fn func(ctx context.Context, ev IndexRotated) error) MessageHandler {
	return func(ctx context.Context, _ []byte, value []byte) error {
		ev, err := DecodeJSON[IndexRotated](value)
		if err != nil {
			return err
		}
		if ev.Index == "" {
			return fmt.Errorf("index rotated event without index")
		}
		return fn(ctx, ev)
	}
}
