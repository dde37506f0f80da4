package logger_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/robalyx/chopper/internal/setup/telemetry/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingBufferKeepsNewestLines(t *testing.T) {
	t.Parallel()

	rb := logger.NewRingBuffer(3)
	assert.Nil(t, rb.Lines())

	for i := range 5 {
		rb.Add(fmt.Sprintf("line %d", i))
	}

	assert.Equal(t, []string{"line 2", "line 3", "line 4"}, rb.Lines())
}

func TestLogRotatorCompactsFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "main.log")

	rotator, err := logger.NewLogRotator(path, 4)
	require.NoError(t, err)
	defer rotator.Close()

	for i := range 8 {
		_, err := fmt.Fprintf(rotator, "entry %d\n", i)
		require.NoError(t, err)
	}

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	assert.Equal(t, []string{"entry 4", "entry 5", "entry 6", "entry 7"}, lines)

	_, err = fmt.Fprintf(rotator, "entry 8\n")
	require.NoError(t, err)

	content, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(content), "entry 7\nentry 8\n"))
}
