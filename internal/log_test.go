package internal

import (
	"bytes"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, LogLevelError, ParseLogLevel("error"))
	assert.Equal(t, LogLevelTrace, ParseLogLevel("TRACE"))
	assert.Equal(t, LogLevelInfo, ParseLogLevel(""))
	assert.Equal(t, LogLevelInfo, ParseLogLevel("verbose"))
}

func TestLoggerPrefixAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	flags := log.Flags()
	log.SetFlags(0)
	defer func() {
		log.SetOutput(os.Stderr)
		log.SetFlags(flags)
	}()

	logger := NewLogger(LogLevelWarn).With("ColumnSplitter")
	logger.Info("hidden")
	logger.Warn("%d blocks", 3)

	assert.Equal(t, "[WARN] [ColumnSplitter] 3 blocks\n", buf.String())
	assert.Equal(t, LogLevelWarn, logger.GetLevel())
}
