package vmtune

// Version is the release version, set at build time with
// -ldflags "-X github.com/aretw0/vmtune.Version=...".
var Version = "dev"
