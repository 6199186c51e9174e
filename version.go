package lessonloop

// Version is the library version, overridable at build time with
// -ldflags "-X github.com/lessonloop/lessonloop.Version=...".
var Version = "0.1.0"
