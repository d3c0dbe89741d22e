package docs

var topics = []Topic{
	{
		Name:    "quickstart",
		Title:   "Quick Start",
		Summary: "Getting started with ok",
		Content: topicQuickstart,
	},
	{
		Name:    "config",
		Title:   "Configuration Reference",
		Summary: "ok.yaml fields, defaults, and environment",
		Content: topicConfig,
	},
	{
		Name:    "build",
		Title:   "Build Modes",
		Summary: "How ok decides between skip, full, backfill, update, and repackage",
		Content: topicBuild,
	},
	{
		Name:    "staging",
		Title:   "Staging Directory",
		Summary: "Structure of .ok/ and what the image carries",
		Content: topicStaging,
	},
	{
		Name:    "run",
		Title:   "Running Instances",
		Summary: "run, serve, stop, and the one-instance-per-spec rule",
		Content: topicRun,
	},
}

const topicQuickstart = `Quick Start
===========

1. Set your API key (or put it in .env):

    export ANTHROPIC_API_KEY=...

2. Start a project:

    ok init                         Writes ok.yaml and an example app.md
    ok init --idea "a todo list"    Lets the agent draft app.md

3. Check the spec for ambiguity:

    ok lint app.md
    ok lint app.md --fix            Let the agent rewrite it

4. Build and run:

    ok serve app.md --port 4000

5. Edit app.md and build again. Only the change is applied.

CLI
---

  ok build <spec>                       Build or update the image
  ok run [spec] [--port P] [--env K=V]... [--env-file F]
                                        Run the built image
  ok serve <spec> [run flags]           Build, then run
  ok stop [spec]                        Stop the running instance
  ok watch <spec>                       Rebuild whenever the spec changes
  ok history [spec] [--limit N]         Show past builds
  ok clean                              Remove .ok/ and the last built image
  ok lint <spec> [--fix]                Report (or fix) ambiguity
  ok init [--spec F] [--idea TEXT]      Scaffold a project
  ok docs [topic]                       Show documentation

run and stop default to the spec of the most recent build.
`

const topicConfig = `Configuration Reference
=======================

ok reads ok.yaml from the working directory when it exists. Every field is
optional.

  image-prefix     string   Image tag prefix. Default: ok
                            Images are tagged <prefix>-<spec name>:latest.
  base-image       string   Runtime image. Default: node:lts-alpine
  staging-dir      string   Local cache of build artifacts. Default: .ok
  port             int      Port used during validation and by 'ok run'.
                            Default: 3000
  model            string   "opus", "sonnet", "haiku", or empty for the
                            agent CLI's default.
  agent-binary     string   Default: claude
  engine-binary    string   Container engine CLI. Default: docker
  max-attempts     int      Validation attempts per generation task. Default: 3
  max-turns        int      Agent turn limit per generation task. Default: 200
  stop-grace       int      Seconds to wait on a graceful stop. Default: 2
  agent-timeout    int      Minutes before an agent task is cancelled.
                            0 disables. Default: 60
  install          string   Shell command run in /app at image build time.
                            Default: npm install when package.json exists.
  log.level        string   debug, info, warn, or error. Default: info
  log.file         string   Default: <staging-dir>/ok.log

Environment
-----------

ANTHROPIC_API_KEY must be set for build, serve, watch, lint, and init --idea.
A .env file in the working directory is loaded first; variables already set
in the environment win.
`

const topicBuild = `Build Modes
===========

Each 'ok build' compares the spec with the snapshot saved by the last build
and picks one mode:

  full        No earlier build exists, locally or as an image. Assertions are
              derived from the spec, then the agent writes the app and the
              test from scratch.

  update      The spec changed. The assertion list is updated from the diff
              and the previous list, and the agent changes the existing app
              only where the diff requires it.

  backfill    The spec is unchanged but the assertion list or the test is
              missing. Assertions are derived again and the agent writes only
              the test.

  repackage   Everything is present and unchanged but the image is gone. The
              image is rebuilt without calling the agent.

  skip        Everything is present, unchanged, and the image exists.

Recovery
--------

If .ok/<name>/ is missing or incomplete but the image ok-<name> exists, the
spec, app, test, and assertions are copied out of the image first. The image
is the durable copy; .ok/ is a cache.

Failed updates
--------------

The new spec snapshot is written before the agent starts. If the update
fails, the next build sees an unchanged spec and runs a backfill. Retry a
failed build by running 'ok build' again, not by editing the spec.

Validation
----------

Every generation task tells the agent to start the app, run the test (or a
liveness request when there are no assertions), stop the app, and retry on
failure up to max-attempts times. An empty assertion list means no test.

Concurrency
-----------

Builds of the same spec take a lock on .ok/<name>/.lock. A second build of
the same spec fails at once. Different specs build independently.
`

const topicStaging = `Staging Directory
=================

The spec name is the file name without its extension, lowercased, with
characters outside a-z 0-9 _ . - replaced by "-". Todo.md and todo.md are the
same spec and share one directory, one lock, and one image.

  .ok/
    name                   Spec name of the most recent build
    history.db             Ledger of every build (see 'ok history')
    ok.log                 Structured log
    <name>/
      spec.md              Spec as of the last build
      assertions.json      Ordered JSON array of assertions
      test.sh              Generated test, run as PORT=<port> sh test.sh
      app/                 Generated app; app/start.sh is the entrypoint
      Dockerfile           Generated build descriptor
      .dockerignore
      build.json           Record of the latest build
      prompts/task-N.md    Tasks sent to the agent
      logs/agent-N.log     Agent transcripts
      .lock

Inside the image:

  /app/                    The app (working directory, CMD sh /app/start.sh)
  /ok/spec.md
  /ok/test.sh              When present
  /ok/assertions.json      When present

The image labels ok.spec, ok.mode, and ok.build-id identify the build.
`

const topicRun = `Running Instances
=================

'ok run' starts the container ok-<name> from the image ok-<name>:latest,
publishing one port and passing it as PORT:

    ok run todo.md --port 4000 --env DEBUG=1 --env-file .env.app

At most one instance per spec exists:

  - If ok-<name> is already running on the current image, run does nothing.
  - Other running containers of the same image are removed first.
  - A stopped container holding the name is removed.

Ctrl-C (or SIGTERM) stops the instance gracefully, waiting stop-grace
seconds. The exit code of the instance becomes the exit code of ok.

'ok serve' builds and then runs. 'ok stop' stops the instance from another
terminal.
`
