package common

import (
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// NewSessionLogger grounds one Builder's logging in a single slog.Logger
// tagged with a session id, the way jinterlante1206-AleutianLocal tags
// its trace-agent runs: every structured record emitted over the life of
// one signature build carries the same "session" attribute, so concurrent
// builders in one process don't interleave unreadably.
func NewSessionLogger() (*slog.Logger, uuid.UUID) {
	session := uuid.New()
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	return slog.New(handler).With("session", session.String()), session
}
