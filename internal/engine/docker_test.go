package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDocker writes a docker stand-in that logs its arguments and answers a
// few inspect calls.
func fakeDocker(t *testing.T) (*Docker, string) {
	t.Helper()
	dir := t.TempDir()
	argLog := filepath.Join(dir, "args.log")
	script := `#!/bin/sh
echo "$@" >> ` + argLog + `
case "$1 $2" in
"image inspect")
  case "$5" in
  ok-todo:latest) echo "sha256:abc" ;;
  *) echo "Error: No such image: $5" >&2; exit 1 ;;
  esac ;;
"container inspect")
  case "$5" in
  ok-todo) echo "deadbeef|/ok-todo|sha256:abc|true" ;;
  *) echo "Error: No such container: $5" >&2; exit 1 ;;
  esac ;;
"ps --filter")
  printf 'c1\tok-todo\nc2\tsleepy_turing\n' ;;
"create ok-todo:latest")
  echo "c3" ;;
"stop -t")
  echo "$4" ;;
"rmi -f")
  echo "Cannot connect to the Docker daemon" >&2; exit 1 ;;
esac
exit 0
`
	bin := filepath.Join(dir, "docker")
	require.NoError(t, os.WriteFile(bin, []byte(script), 0755))
	return &Docker{Binary: bin}, argLog
}

func readArgs(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestDocker_ImageID(t *testing.T) {
	d, _ := fakeDocker(t)
	id, err := d.ImageID(context.Background(), "ok-todo:latest")
	require.NoError(t, err)
	assert.Equal(t, "sha256:abc", id)

	_, err = d.ImageID(context.Background(), "ok-missing:latest")
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
}

func TestDocker_InspectContainer(t *testing.T) {
	d, _ := fakeDocker(t)
	c, err := d.InspectContainer(context.Background(), "ok-todo")
	require.NoError(t, err)
	assert.Equal(t, &Container{ID: "deadbeef", Name: "ok-todo", ImageID: "sha256:abc", Running: true}, c)

	_, err = d.InspectContainer(context.Background(), "other")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDocker_ListByAncestor(t *testing.T) {
	d, argLog := fakeDocker(t)
	cs, err := d.ListByAncestor(context.Background(), "ok-todo:latest")
	require.NoError(t, err)
	assert.Equal(t, []Container{
		{ID: "c1", Name: "ok-todo", Running: true},
		{ID: "c2", Name: "sleepy_turing", Running: true},
	}, cs)
	assert.Contains(t, readArgs(t, argLog), "ancestor=ok-todo:latest")
}

func TestDocker_CreateCopyRemove(t *testing.T) {
	d, argLog := fakeDocker(t)
	ctx := context.Background()
	id, err := d.Create(ctx, "ok-todo:latest")
	require.NoError(t, err)
	assert.Equal(t, "c3", id)
	require.NoError(t, d.Copy(ctx, id, "/ok/spec.md", "/tmp/spec.md"))
	require.NoError(t, d.Remove(ctx, id))

	log := readArgs(t, argLog)
	assert.Contains(t, log, "cp c3:/ok/spec.md /tmp/spec.md")
	assert.Contains(t, log, "rm -f c3")
}

func TestDocker_StopRoundsGraceUp(t *testing.T) {
	d, argLog := fakeDocker(t)
	require.NoError(t, d.Stop(context.Background(), "ok-todo", 1500*time.Millisecond))
	assert.Contains(t, readArgs(t, argLog), "stop -t 2 ok-todo")
}

func TestDocker_CommandErrorNotMappedToNotFound(t *testing.T) {
	d, _ := fakeDocker(t)
	err := d.RemoveImage(context.Background(), "ok-todo:latest")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
	var ce *CommandError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 1, ce.ExitCode)
	assert.Contains(t, ce.Error(), "Cannot connect")
}

func TestRunArgs(t *testing.T) {
	args := RunArgs(RunOptions{
		Image:   "ok-todo:latest",
		Name:    "ok-todo",
		Port:    4000,
		Env:     []string{"DEBUG=1", "MODE=dev"},
		EnvFile: ".env.local",
	})
	want := "run --rm --init --name ok-todo -p 4000:4000 -e PORT=4000 -e DEBUG=1 -e MODE=dev --env-file .env.local ok-todo:latest"
	assert.Equal(t, want, strings.Join(args, " "))
}

func TestDocker_RunExitCode(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "docker")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\nexit 7\n"), 0755))
	d := &Docker{Binary: bin}
	code, err := d.Run(context.Background(), RunOptions{Image: "x", Name: "x", Port: 1})
	require.NoError(t, err)
	assert.Equal(t, 7, code)
}

func TestCommandError_EmptyStderr(t *testing.T) {
	err := &CommandError{Args: []string{"build", "-t", "x", "."}, ExitCode: 2}
	assert.Equal(t, "build -t x .: exit status 2", err.Error())
}
