// Package logutils holds logging constants shared by packages that must
// not depend on config.
package logutils

import "log/slog"

// LevelTrace is a custom slog level below [slog.LevelDebug], used for
// wire-level payloads (full tool results, JSON-RPC lines).
const LevelTrace = slog.Level(-8)
