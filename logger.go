package multicache

import pr "github.com/unkn0wn-root/multicache/provider"

// Fields is a minimal structured field map for logs.
type Fields = pr.Fields

// Logger is a tiny leveled logger. Provide an adapter around logging stack
// (see log/zap, log/logrus, log/slog). If Logger is nil in Config, logging is
// disabled.
type Logger = pr.Logger

type NopLogger = pr.NopLogger
