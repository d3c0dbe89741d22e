package staging

// Well-known paths inside a built image. The image is the durable copy of a
// workspace; these paths let a workspace be reconstructed from it.
const (
	ImageAppDir     = "/app"
	ImageEntrypoint = "/app/" + Entrypoint
	ImageSpec       = "/ok/" + SpecFile
	ImageTest       = "/ok/" + TestFile
	ImageAssertions = "/ok/" + AssertionsFile
)
