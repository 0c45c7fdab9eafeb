package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/yngpu/hfjob/pkg/config"
	"github.com/yngpu/hfjob/pkg/errors"
	"github.com/yngpu/hfjob/pkg/k8s/client"
	"github.com/yngpu/hfjob/pkg/serializer"
)

func newFormatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"t"},
		Value:   string(serializer.FormatYAML),
		Usage:   fmt.Sprintf("Output format (%s)", strings.Join(serializer.SupportedFormats(), ", ")),
	}
}

func newKubeconfigFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "kubeconfig",
		Aliases: []string{"k"},
		Usage:   "Path to kubeconfig file (overrides " + client.EnvKubeconfig + " env)",
	}
}

// parseOutputFormat extracts and validates the output format from CLI flags.
// Returns the validated format or an error if the format is unknown.
func parseOutputFormat(cmd *cli.Command) (serializer.Format, error) {
	outFormat := serializer.Format(cmd.String("format"))
	if outFormat.IsUnknown() {
		return "", errors.New(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("unknown output format: %q, valid formats are: %s",
				outFormat, strings.Join(serializer.SupportedFormats(), ", ")))
	}
	return outFormat, nil
}

// flagKey maps a flag name to its config key.
func flagKey(flagName string) string {
	return strings.ReplaceAll(flagName, "-", "_")
}

func isKnownKey(key string) bool {
	for _, k := range config.KnownKeys {
		if k == key {
			return true
		}
	}
	return false
}

func isStdout(path string) bool {
	return path == "" || path == serializer.StdoutURI
}

func stdout(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func stderr(cmd *cli.Command) io.Writer {
	if w := cmd.Root().ErrWriter; w != nil {
		return w
	}
	return os.Stderr
}
