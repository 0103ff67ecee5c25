package dist

import (
	"io"
	"strings"
	"time"

	"github.com/distbuild/distbuild/internal/archive"
	"github.com/distbuild/distbuild/internal/errors"
)

// Format is an archive kind.
type Format string

const (
	FormatTarGz Format = "tar.gz"
	FormatZip   Format = "zip"
)

// Formats lists the supported formats.
var Formats = []Format{FormatTarGz, FormatZip}

// ParseFormat resolves a format name; `tgz` is accepted for tar.gz.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(name, ".")) {
	case "tar.gz", "tgz":
		return FormatTarGz, nil
	case "zip":
		return FormatZip, nil
	}

	return "", errors.Errorf("unsupported distribution format %q", name)
}

// Extension is the file name suffix of the format.
func (format Format) Extension() string {
	return "." + string(format)
}

func (format Format) newWriter(w io.Writer, modTime time.Time) archive.Writer {
	if format == FormatZip {
		return archive.NewZipWriter(w, modTime)
	}

	return archive.NewTarGzWriter(w, modTime)
}
