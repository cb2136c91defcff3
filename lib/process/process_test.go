package process

import (
	"context"
	"io"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spawnCat(t *testing.T) *Process {
	t.Helper()
	path, err := exec.LookPath("cat")
	if err != nil {
		t.Skip("cat not available")
	}

	p, err := Spawn(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestSpawn_EchoesThroughPipes(t *testing.T) {
	p := spawnCat(t)
	assert.Positive(t, p.PID())

	_, err := p.Stdin().Write([]byte("hello host"))
	require.NoError(t, err)

	buf := make([]byte, len("hello host"))
	_, err = io.ReadFull(p.Stdout(), buf)
	require.NoError(t, err)
	assert.Equal(t, "hello host", string(buf))
}

func TestClose_Idempotent(t *testing.T) {
	p := spawnCat(t)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	_ = p.Wait()
}

func TestSpawn_MissingExecutable(t *testing.T) {
	_, err := Spawn(context.Background(), "/nonexistent/upbridge-host")
	assert.Error(t, err)
}

func TestTerminate_ReaderSeesEndOfStreamBeforeReap(t *testing.T) {
	p := spawnCat(t)

	require.NoError(t, p.Terminate())
	require.NoError(t, p.Terminate())

	_, err := io.ReadAll(p.Stdout())
	require.NoError(t, err)
	// cat may exit on its own once stdin closes, so the exit status varies.
	_ = p.Wait()
	assert.NotNil(t, p.cmd.ProcessState)
}
