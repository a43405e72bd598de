// Package log provides structured logging for Iguana.
//
// Every component derives its own logger from the process default:
//
//	logger := log.GetDefault().WithField("component", "search-parser")
//	logger.Debug("query compiled", log.Fields{"entity": "Issue"})
//
// Loggers never mutate in place, so a derived logger can be shared between
// goroutines without further locking.
package log
