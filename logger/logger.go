package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
)

// Fields is an alias so callers don't need to import logrus directly.
type Fields = logrus.Fields

var (
	log  *logrus.Logger
	once sync.Once
)

// Get returns the process-wide logger, creating it on first use.
func Get() *logrus.Logger {
	once.Do(func() {
		log = logrus.New()
		log.SetOutput(os.Stderr)
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		log.SetLevel(logrus.InfoLevel)
		if lvl := os.Getenv("SETTINGS_LOG_LEVEL"); lvl != "" {
			if parsed, err := logrus.ParseLevel(strings.TrimSpace(lvl)); err == nil {
				log.SetLevel(parsed)
			}
		}
	})
	return log
}

// SetLevel changes the level of the shared logger ("debug", "info", ...).
func SetLevel(level string) error {
	parsed, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return oops.Wrapf(err, "invalid log level %q", level)
	}
	Get().SetLevel(parsed)
	return nil
}

// SetOutput redirects the shared logger, mostly for tests.
func SetOutput(w io.Writer) {
	Get().SetOutput(w)
}
