package docs

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/jorge-barreto/ok/internal/build"
	"github.com/jorge-barreto/ok/internal/config"
	"github.com/jorge-barreto/ok/internal/history"
	"github.com/jorge-barreto/ok/internal/staging"
)

func topic(t *testing.T, name string) Topic {
	t.Helper()
	tp, err := Get(name)
	if err != nil {
		t.Fatal(err)
	}
	return tp
}

func TestAll_QuickstartFirstAndNamesUnique(t *testing.T) {
	topics := All()
	if len(topics) == 0 || topics[0].Name != "quickstart" {
		t.Fatalf("first topic should be quickstart: %+v", topics)
	}
	seen := make(map[string]bool)
	for _, tp := range topics {
		if seen[tp.Name] {
			t.Errorf("duplicate topic %q", tp.Name)
		}
		seen[tp.Name] = true
		if tp.Title == "" || tp.Summary == "" || tp.Content == "" {
			t.Errorf("topic %q has empty fields", tp.Name)
		}
	}
}

func TestGet_IgnoresCase(t *testing.T) {
	if got := topic(t, " Build ").Name; got != "build" {
		t.Fatalf("Name = %q", got)
	}
}

func TestGet_UnknownListsTopics(t *testing.T) {
	_, err := Get("deploy")
	if !errors.Is(err, ErrUnknownTopic) {
		t.Fatalf("err = %v", err)
	}
	for _, tp := range All() {
		if !strings.Contains(err.Error(), tp.Name) {
			t.Errorf("error %q does not mention %q", err, tp.Name)
		}
	}
}

func TestBuildTopic_NamesEveryMode(t *testing.T) {
	content := topic(t, "build").Content
	for _, m := range []build.Mode{build.ModeFull, build.ModeUpdate, build.ModeBackfill, build.ModeRepackage, build.ModeSkip} {
		if !strings.Contains(content, "  "+string(m)+" ") {
			t.Errorf("build topic does not describe mode %q", m)
		}
	}
}

func TestConfigTopic_DocumentsEveryField(t *testing.T) {
	content := topic(t, "config").Content
	var keys []string
	var collect func(typ reflect.Type, prefix string)
	collect = func(typ reflect.Type, prefix string) {
		for i := 0; i < typ.NumField(); i++ {
			f := typ.Field(i)
			key := prefix + strings.Split(f.Tag.Get("yaml"), ",")[0]
			if f.Type.Kind() == reflect.Struct {
				collect(f.Type, key+".")
				continue
			}
			keys = append(keys, key)
		}
	}
	collect(reflect.TypeOf(config.Config{}), "")

	for _, k := range keys {
		if !strings.Contains(content, "  "+k+" ") {
			t.Errorf("config topic does not document %q", k)
		}
	}
}

func TestStagingTopic_MatchesLayout(t *testing.T) {
	content := topic(t, "staging").Content
	for _, name := range []string{
		staging.SpecFile,
		staging.TestFile,
		staging.AssertionsFile,
		staging.DockerfileName,
		staging.AppDir + "/" + staging.Entrypoint,
		history.FileName,
		staging.ImageSpec,
		staging.ImageTest,
		staging.ImageAssertions,
	} {
		if !strings.Contains(content, name) {
			t.Errorf("staging topic does not mention %s", name)
		}
	}
}

func TestRunTopic_CoversFlags(t *testing.T) {
	content := topic(t, "run").Content
	for _, flag := range []string{"--port", "--env", "--env-file", "stop-grace"} {
		if !strings.Contains(content, flag) {
			t.Errorf("run topic does not mention %s", flag)
		}
	}
}
