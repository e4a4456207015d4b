// Package log provides the module loggers of the issuer.
package log

import (
	"github.com/sirupsen/logrus"
)

var (
	_logger    = logrus.StandardLogger().WithField("module", "Issuer")
	_apiLogger = logrus.StandardLogger().WithField("module", "HTTP")
	_keyLogger = logrus.StandardLogger().WithField("module", "Keystore")
)

// Logger returns a logger which should be used for logging in the issuing pipeline. It adds fields so
// log entries from this module can be recognized as such.
func Logger() *logrus.Entry {
	return _logger
}

// APILogger returns the logger for the HTTP boundary.
func APILogger() *logrus.Entry {
	return _apiLogger
}

// KeyLogger returns the logger for key loading.
func KeyLogger() *logrus.Entry {
	return _keyLogger
}
