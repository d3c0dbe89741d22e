// Package enginetest provides an in-memory engine.Engine. Images are maps of
// absolute file paths to contents, built by interpreting the COPY lines of
// the Dockerfile in the build context.
package enginetest

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jorge-barreto/ok/internal/engine"
)

// Image is a fake image.
type Image struct {
	ID         string
	Files      map[string]string
	Dockerfile string
}

type container struct {
	id      string
	name    string
	imageID string
	files   map[string]string
	running bool
	done    chan struct{}
}

// Fake is a concurrency-safe in-memory engine.
type Fake struct {
	// BuildErr, when set, fails every Build.
	BuildErr error
	// ExitCode is returned by Run when the container is stopped.
	ExitCode int

	mu         sync.Mutex
	images     map[string]*Image
	containers map[string]*container
	seq        int
	calls      []string
}

func (f *Fake) init() {
	if f.images == nil {
		f.images = make(map[string]*Image)
		f.containers = make(map[string]*container)
	}
}

func (f *Fake) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *Fake) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s%d", prefix, f.seq)
}

// Calls returns the recorded operations, e.g. "build ok-todo:latest".
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CountCalls counts recorded operations starting with prefix.
func (f *Fake) CountCalls(prefix string) int {
	n := 0
	for _, c := range f.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// AddImage registers an image directly.
func (f *Fake) AddImage(tag string, files map[string]string) *Image {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.init()
	img := &Image{ID: f.nextID("sha256:"), Files: files}
	f.images[tag] = img
	return img
}

// Image returns the image for tag, or nil.
func (f *Fake) Image(tag string) *Image {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.init()
	return f.images[tag]
}

// DeleteImage forgets tag.
func (f *Fake) DeleteImage(tag string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.init()
	delete(f.images, tag)
}

// AddContainer registers a container created from tag and returns its id.
// An empty name stands for an anonymous container.
func (f *Fake) AddContainer(name, tag string, running bool) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.init()
	img := f.images[tag]
	c := &container{id: f.nextID("c"), name: name, running: running, done: make(chan struct{})}
	if img != nil {
		c.imageID = img.ID
	}
	if c.name == "" {
		c.name = "anon_" + c.id
	}
	f.containers[c.id] = c
	return c.id
}

// Running reports whether a container with name or id is running.
func (f *Fake) Running(ref string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.init()
	c := f.lookup(ref)
	return c != nil && c.running
}

// Exists reports whether a container with name or id exists.
func (f *Fake) Exists(ref string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.init()
	return f.lookup(ref) != nil
}

func (f *Fake) lookup(ref string) *container {
	if c, ok := f.containers[ref]; ok {
		return c
	}
	for _, c := range f.containers {
		if c.name == ref {
			return c
		}
	}
	return nil
}

func notFound(op, ref string) error {
	return fmt.Errorf("%s %s: %w", op, ref, engine.ErrNotFound)
}

func (f *Fake) Build(ctx context.Context, tag, contextDir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.init()
	f.record("build %s", tag)
	if f.BuildErr != nil {
		return f.BuildErr
	}
	dockerfile, err := os.ReadFile(filepath.Join(contextDir, "Dockerfile"))
	if err != nil {
		return &engine.CommandError{Args: []string{"build", "-t", tag, contextDir}, ExitCode: 1, Stderr: err.Error()}
	}
	files := make(map[string]string)
	sc := bufio.NewScanner(strings.NewReader(string(dockerfile)))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) != 3 || fields[0] != "COPY" {
			continue
		}
		if err := copyIn(files, contextDir, fields[1], fields[2]); err != nil {
			return &engine.CommandError{Args: []string{"build", "-t", tag, contextDir}, ExitCode: 1, Stderr: err.Error()}
		}
	}
	f.images[tag] = &Image{ID: f.nextID("sha256:"), Files: files, Dockerfile: string(dockerfile)}
	return nil
}

// copyIn applies one COPY instruction. A src ending in "/" copies a tree.
func copyIn(files map[string]string, contextDir, src, dst string) error {
	local := filepath.Join(contextDir, filepath.FromSlash(src))
	if !strings.HasSuffix(src, "/") {
		data, err := os.ReadFile(local)
		if err != nil {
			return err
		}
		files[dst] = string(data)
		return nil
	}
	return filepath.WalkDir(local, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(local, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		files[path.Join(dst, filepath.ToSlash(rel))] = string(data)
		return nil
	})
}

func (f *Fake) ImageID(ctx context.Context, tag string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.init()
	f.record("image inspect %s", tag)
	img, ok := f.images[tag]
	if !ok {
		return "", notFound("image inspect", tag)
	}
	return img.ID, nil
}

func (f *Fake) InspectContainer(ctx context.Context, ref string) (*engine.Container, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.init()
	f.record("container inspect %s", ref)
	c := f.lookup(ref)
	if c == nil {
		return nil, notFound("container inspect", ref)
	}
	return &engine.Container{ID: c.id, Name: c.name, ImageID: c.imageID, Running: c.running}, nil
}

func (f *Fake) ListByAncestor(ctx context.Context, tag string) ([]engine.Container, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.init()
	f.record("ps ancestor=%s", tag)
	img, ok := f.images[tag]
	if !ok {
		return nil, nil
	}
	var out []engine.Container
	for _, c := range f.containers {
		if c.running && c.imageID == img.ID {
			out = append(out, engine.Container{ID: c.id, Name: c.name, ImageID: c.imageID, Running: true})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *Fake) Create(ctx context.Context, tag string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.init()
	f.record("create %s", tag)
	img, ok := f.images[tag]
	if !ok {
		return "", notFound("create", tag)
	}
	c := &container{id: f.nextID("c"), imageID: img.ID, files: img.Files, done: make(chan struct{})}
	c.name = "anon_" + c.id
	f.containers[c.id] = c
	return c.id, nil
}

// Copy supports a single file or "<dir>/." for a directory's contents.
func (f *Fake) Copy(ctx context.Context, id, src, dst string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.init()
	f.record("cp %s:%s", id, src)
	c, ok := f.containers[id]
	if !ok {
		return notFound("cp", id)
	}
	missing := &engine.CommandError{Args: []string{"cp", id + ":" + src, dst}, ExitCode: 1,
		Stderr: "Error: Could not find the file " + src + " in container " + id}

	if dir, ok := strings.CutSuffix(src, "/."); ok {
		prefix := strings.TrimSuffix(dir, "/") + "/"
		found := false
		for p, content := range c.files {
			rel, ok := strings.CutPrefix(p, prefix)
			if !ok {
				continue
			}
			found = true
			if err := writeFile(filepath.Join(dst, filepath.FromSlash(rel)), content); err != nil {
				return err
			}
		}
		if !found {
			return missing
		}
		return nil
	}
	content, ok := c.files[src]
	if !ok {
		return missing
	}
	return writeFile(dst, content)
}

func writeFile(p, content string) error {
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	return os.WriteFile(p, []byte(content), 0644)
}

func (f *Fake) Remove(ctx context.Context, refs ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.init()
	var missing []string
	for _, ref := range refs {
		f.record("rm %s", ref)
		c := f.lookup(ref)
		if c == nil {
			missing = append(missing, ref)
			continue
		}
		f.kill(c)
		delete(f.containers, c.id)
	}
	if len(missing) > 0 {
		return notFound("rm", strings.Join(missing, " "))
	}
	return nil
}

func (f *Fake) kill(c *container) {
	if c.running {
		c.running = false
		close(c.done)
	}
}

func (f *Fake) RemoveImage(ctx context.Context, tag string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.init()
	f.record("rmi %s", tag)
	if _, ok := f.images[tag]; !ok {
		return notFound("rmi", tag)
	}
	delete(f.images, tag)
	return nil
}

// Run registers a running container and blocks until it is stopped, removed
// or ctx is done. Like --rm, the container is gone afterwards.
func (f *Fake) Run(ctx context.Context, opts engine.RunOptions) (int, error) {
	f.mu.Lock()
	f.init()
	f.record("run %s %s", opts.Name, opts.Image)
	img, ok := f.images[opts.Image]
	if !ok {
		f.mu.Unlock()
		return 125, nil
	}
	if f.lookup(opts.Name) != nil {
		f.mu.Unlock()
		return 0, &engine.CommandError{Args: engine.RunArgs(opts), ExitCode: 125,
			Stderr: "Conflict. The container name \"/" + opts.Name + "\" is already in use"}
	}
	c := &container{id: f.nextID("c"), name: opts.Name, imageID: img.ID, files: img.Files, running: true, done: make(chan struct{})}
	f.containers[c.id] = c
	f.mu.Unlock()

	code := f.ExitCode
	select {
	case <-c.done:
	case <-ctx.Done():
		code = 130
	}

	f.mu.Lock()
	f.kill(c)
	delete(f.containers, c.id)
	f.mu.Unlock()
	return code, nil
}

func (f *Fake) Stop(ctx context.Context, name string, grace time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.init()
	f.record("stop %s", name)
	c := f.lookup(name)
	if c == nil || !c.running {
		return notFound("stop", name)
	}
	f.kill(c)
	return nil
}
