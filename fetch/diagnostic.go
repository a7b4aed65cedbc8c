package fetch

import "github.com/gaborage/go-fetch/logger"

// LoggerDiagnostic reports retry summaries as warnings on log
func LoggerDiagnostic(log logger.Logger) DiagnosticFunc {
	return func(message string, tags map[string]string) {
		event := log.Warn()
		for key, value := range tags {
			event = event.Str(key, value)
		}
		event.Msg(message)
	}
}
