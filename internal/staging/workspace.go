// Package staging manages the local staging area where build artifacts for a
// spec identity are cached between invocations.
//
// Layout under the staging root (default ".ok"):
//
//	name               derived spec name of the most recent build
//	<name>/spec.md     last-built spec snapshot
//	<name>/app/        generated application (app/start.sh is the entrypoint)
//	<name>/test.sh     generated test (optional)
//	<name>/assertions.json
//	<name>/Dockerfile  build descriptor; <name>/ is the build context
//	<name>/logs/, <name>/prompts/, <name>/build.json, <name>/.lock
//
// The staging area is a cache: the durable copy of every artifact lives in
// the built image and can be recovered from it.
package staging

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	SpecFile       = "spec.md"
	AppDir         = "app"
	Entrypoint     = "start.sh"
	TestFile       = "test.sh"
	AssertionsFile = "assertions.json"
	DockerfileName = "Dockerfile"
	nameFile       = "name"
)

// ErrNoPriorBuild is returned when no spec name has been recorded yet.
var ErrNoPriorBuild = errors.New("no prior build found")

// Workspace is the staging context for one spec identity. It is passed
// explicitly to every component so builds for different specs never share
// mutable state.
type Workspace struct {
	Root string // staging root, e.g. ".ok"
	Name string // derived spec identity
}

// New returns the workspace for name under root.
func New(root, name string) *Workspace {
	return &Workspace{Root: root, Name: name}
}

// Dir is the per-spec directory. It doubles as the image build context.
func (w *Workspace) Dir() string {
	return filepath.Join(w.Root, w.Name)
}

func (w *Workspace) SpecPath() string {
	return filepath.Join(w.Dir(), SpecFile)
}

func (w *Workspace) AppDir() string {
	return filepath.Join(w.Dir(), AppDir)
}

func (w *Workspace) EntrypointPath() string {
	return filepath.Join(w.AppDir(), Entrypoint)
}

func (w *Workspace) TestPath() string {
	return filepath.Join(w.Dir(), TestFile)
}

func (w *Workspace) AssertionsPath() string {
	return filepath.Join(w.Dir(), AssertionsFile)
}

func (w *Workspace) DockerfilePath() string {
	return filepath.Join(w.Dir(), DockerfileName)
}

func (w *Workspace) DockerIgnorePath() string {
	return filepath.Join(w.Dir(), ".dockerignore")
}

func (w *Workspace) LockPath() string {
	return filepath.Join(w.Dir(), ".lock")
}

// PromptPath returns the path for the nth rendered agent task.
func (w *Workspace) PromptPath(n int) string {
	return filepath.Join(w.Dir(), "prompts", fmt.Sprintf("task-%d.md", n))
}

// LogPath returns the path for the nth agent transcript.
func (w *Workspace) LogPath(n int) string {
	return filepath.Join(w.Dir(), "logs", fmt.Sprintf("agent-%d.log", n))
}

// EnsureDir creates the per-spec directory structure.
func (w *Workspace) EnsureDir() error {
	dirs := []string{
		w.Dir(),
		filepath.Join(w.Dir(), "prompts"),
		filepath.Join(w.Dir(), "logs"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("creating staging dir %s: %w", d, err)
		}
	}
	return nil
}

// Inventory reports which artifacts are present on disk.
type Inventory struct {
	Snapshot   bool
	App        bool
	Test       bool
	Assertions bool
}

// HasExistingBuild reports whether the artifacts that constitute a valid
// prior build are both present. Neither counts on its own.
func (inv Inventory) HasExistingBuild() bool {
	return inv.Snapshot && inv.App
}

// Inventory stats every artifact path.
func (w *Workspace) Inventory() Inventory {
	return Inventory{
		Snapshot:   isFile(w.SpecPath()),
		App:        isFile(w.EntrypointPath()),
		Test:       isFile(w.TestPath()),
		Assertions: isFile(w.AssertionsPath()),
	}
}

// Snapshot reads the last-built spec. ok is false when no snapshot exists.
func (w *Workspace) Snapshot() (text string, ok bool, err error) {
	data, err := os.ReadFile(w.SpecPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(data), true, nil
}

// WriteSnapshot persists spec as the last-built reference version.
func (w *Workspace) WriteSnapshot(spec string) error {
	return WriteFileAtomic(w.SpecPath(), []byte(spec), 0644)
}

// RemoveDerived deletes the test and assertion artifacts. They are derived
// from the snapshot and go stale the moment a new snapshot is written.
func (w *Workspace) RemoveDerived() error {
	for _, p := range []string{w.TestPath(), w.AssertionsPath()} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// ReadName returns the spec name recorded by the most recent build.
func ReadName(root string) (string, error) {
	data, err := os.ReadFile(filepath.Join(root, nameFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNoPriorBuild
		}
		return "", err
	}
	name := strings.TrimSpace(string(data))
	if name == "" {
		return "", ErrNoPriorBuild
	}
	return name, nil
}

// WriteName records name for later lookup by run, stop and clean.
func WriteName(root, name string) error {
	return WriteFileAtomic(filepath.Join(root, nameFile), []byte(name+"\n"), 0644)
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
