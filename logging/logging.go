package logging

import "go.uber.org/zap"

// GetSugaredLogger initializes and returns a SugaredLogger instance.
// The SugaredLogger provides a flexible API for structured logging with
// key-value pairs. It uses a development configuration, which is convenient
// for debugging.
func GetSugaredLogger() *zap.SugaredLogger {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic("cannot initialize zap")
	}

	return logger.Sugar()
}
