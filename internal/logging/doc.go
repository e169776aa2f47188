// Package logging provides structured logging for campusd.
//
// Logger wraps Zap with a custom Trace level, stdout and OpenTelemetry
// outputs, encoder-level secret redaction and level-aware sampling (errors
// are never sampled). Every context-aware method prepends correlation fields
// found in the context: trace_id/span_id, request.id and user.id.
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig(), nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithUserID(ctx, "student-42")
//	logger.Info(ctx, "quiz generated", zap.Int("questions", 5))
//
// Tests use NewTestLogger and its Assert helpers.
package logging
