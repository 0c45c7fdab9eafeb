package serializer

const (
	// StdoutURI is the special output path indicating output should be written to stdout.
	StdoutURI = "-"

	// dirPerm is used for parent directories created for output files.
	dirPerm = 0o755

	// filePerm is used for output files. Manifests carry the HF token.
	filePerm = 0o600
)
