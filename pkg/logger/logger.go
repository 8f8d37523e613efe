package logger

import "go.uber.org/zap"

// New builds the process logger. Development gets the human-readable console
// encoder; everything else gets production JSON.
func New(env string) *zap.Logger {
	var log *zap.Logger
	var err error
	if env == "development" {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return log
}
