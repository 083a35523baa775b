// SPDX-License-Identifier: MIT
package transport

import "fdaudio/internal/log"

// LoggingTransport implements Transport by logging each record at debug
// level. It is the fallback used when neither UDP nor WebSocket
// diagnostics are configured, so Reporter always has a non-nil sink.
type LoggingTransport struct{}

// NewLoggingTransport constructs a LoggingTransport.
func NewLoggingTransport() *LoggingTransport {
	log.Infof("transport: using logging fallback for pipeline diagnostics")
	return &LoggingTransport{}
}

// Send logs stats at debug level and never fails.
func (lt *LoggingTransport) Send(stats any) error {
	log.Debugf("transport: pipeline stats: %+v", stats)
	return nil
}

// Close is a no-op.
func (lt *LoggingTransport) Close() error { return nil }

var _ Transport = (*LoggingTransport)(nil)
