package redisrdb

import (
	"time"
)

// loggerAdapter adapts our Logger interface to the key/value loggers of the
// server and rdb packages
type loggerAdapter struct {
	logger Logger
}

func (la *loggerAdapter) Debug(msg string, fields ...interface{}) {
	la.logger.Debug(msg, convertFields(fields...)...)
}

func (la *loggerAdapter) Info(msg string, fields ...interface{}) {
	la.logger.Info(msg, convertFields(fields...)...)
}

func (la *loggerAdapter) Error(msg string, fields ...interface{}) {
	la.logger.Error(msg, convertFields(fields...)...)
}

func convertFields(fields ...interface{}) []Field {
	result := make([]Field, 0, len(fields)/2)
	for i := 0; i < len(fields)-1; i += 2 {
		if key, ok := fields[i].(string); ok {
			result = append(result, Field{
				Key:   key,
				Value: fields[i+1],
			})
		}
	}
	return result
}

// metricsAdapter feeds server events into ServerStats and, when configured,
// a MetricsCollector
type metricsAdapter struct {
	stats   *ServerStats
	metrics MetricsCollector
}

func (ma *metricsAdapter) RecordConnection(open bool) {
	ma.stats.mu.Lock()
	if open {
		ma.stats.ActiveConnections++
		ma.stats.TotalConnections++
	} else {
		ma.stats.ActiveConnections--
	}
	ma.stats.mu.Unlock()

	if ma.metrics != nil {
		ma.metrics.RecordConnection(open)
	}
}

func (ma *metricsAdapter) RecordCommandProcessed(cmd string, duration time.Duration) {
	ma.stats.mu.Lock()
	ma.stats.CommandsProcessed[cmd]++
	ma.stats.mu.Unlock()

	if ma.metrics != nil {
		ma.metrics.RecordCommandProcessed(cmd, duration)
	}
}

func (ma *metricsAdapter) RecordError(errorType string) {
	ma.stats.mu.Lock()
	ma.stats.Errors[errorType]++
	ma.stats.mu.Unlock()

	if ma.metrics != nil {
		ma.metrics.RecordError(errorType)
	}
}
