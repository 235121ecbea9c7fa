package credential

// Version is the module version embedded in store ids. Release builds set it
// with -ldflags "-X github.com/systmms/credstore/pkg/credential.Version=...".
var Version = "dev"
