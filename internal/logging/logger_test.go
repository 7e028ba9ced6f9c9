package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	log, err := New(Config{ServiceName: "farmacia", Env: "local", Level: "debug", Format: "json"})
	require.NoError(t, err)
	require.NotNil(t, log)

	_, err = New(Config{Level: "verbose"})
	require.ErrorContains(t, err, "invalid log level")

	_, err = New(Config{Format: "xml"})
	require.ErrorContains(t, err, "invalid log format")
}
