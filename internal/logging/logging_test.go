package logging

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLevels(t *testing.T) {
	log, err := Init(Config{Level: "debug"})
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, log.GetLevel())

	log, err = Init(Config{})
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
}

func TestInitConsoleFormat(t *testing.T) {
	_, err := Init(Config{Format: "console"})
	assert.NoError(t, err)
}

func TestInitRejectsBadInput(t *testing.T) {
	_, err := Init(Config{Level: "loud"})
	assert.Error(t, err)

	_, err = Init(Config{Format: "xml"})
	assert.Error(t, err)
}
