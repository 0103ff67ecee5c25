// Package archive writes zip, jar and tar.gz archives with deterministic entry order and timestamps.
package archive

import (
	"archive/tar"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"
	"time"

	"github.com/distbuild/distbuild/internal/errors"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
)

const (
	DefaultFileMode fs.FileMode = 0o644
	DefaultDirMode  fs.FileMode = 0o755
)

// Writer adds entries to an archive. Names are slash separated; directories end with `/`.
type Writer interface {
	AddDir(name string, mode fs.FileMode) error
	AddFile(name, src string, mode fs.FileMode) error
	AddBytes(name string, data []byte, mode fs.FileMode) error
	Close() error
}

// ZipWriter writes zip (and jar) archives.
type ZipWriter struct {
	zw      *zip.Writer
	modTime time.Time
}

// NewZipWriter returns a writer stamping every entry with modTime.
func NewZipWriter(w io.Writer, modTime time.Time) *ZipWriter {
	return &ZipWriter{zw: zip.NewWriter(w), modTime: modTime}
}

func (writer *ZipWriter) header(name string, mode fs.FileMode) *zip.FileHeader {
	header := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: writer.modTime,
	}
	header.SetMode(mode)

	return header
}

// AddDir implements Writer.
func (writer *ZipWriter) AddDir(name string, mode fs.FileMode) error {
	header := writer.header(dirName(name), mode|fs.ModeDir)
	header.Method = zip.Store

	_, err := writer.zw.CreateHeader(header)

	return errors.WithStackTrace(err)
}

// AddFile implements Writer.
func (writer *ZipWriter) AddFile(name, src string, mode fs.FileMode) error {
	file, err := os.Open(src)
	if err != nil {
		return errors.New(err)
	}
	defer file.Close()

	dst, err := writer.zw.CreateHeader(writer.header(name, mode))
	if err != nil {
		return errors.New(err)
	}

	if _, err := io.Copy(dst, file); err != nil {
		return errors.Errorf("failed to add %s: %w", src, err)
	}

	return nil
}

// AddBytes implements Writer.
func (writer *ZipWriter) AddBytes(name string, data []byte, mode fs.FileMode) error {
	dst, err := writer.zw.CreateHeader(writer.header(name, mode))
	if err != nil {
		return errors.New(err)
	}

	_, err = dst.Write(data)

	return errors.WithStackTrace(err)
}

// Close implements Writer.
func (writer *ZipWriter) Close() error {
	return errors.WithStackTrace(writer.zw.Close())
}

// TarGzWriter writes gzip compressed tar archives.
type TarGzWriter struct {
	gw      *gzip.Writer
	tw      *tar.Writer
	modTime time.Time
}

// NewTarGzWriter returns a writer stamping every entry with modTime.
func NewTarGzWriter(w io.Writer, modTime time.Time) *TarGzWriter {
	gw := gzip.NewWriter(w)
	gw.ModTime = modTime

	return &TarGzWriter{gw: gw, tw: tar.NewWriter(gw), modTime: modTime}
}

func (writer *TarGzWriter) header(name string, mode fs.FileMode, typeflag byte, size int64) *tar.Header {
	return &tar.Header{
		Typeflag: typeflag,
		Name:     name,
		Mode:     int64(mode.Perm()),
		Size:     size,
		ModTime:  writer.modTime,
		Format:   tar.FormatPAX,
	}
}

// AddDir implements Writer.
func (writer *TarGzWriter) AddDir(name string, mode fs.FileMode) error {
	return errors.WithStackTrace(writer.tw.WriteHeader(writer.header(dirName(name), mode, tar.TypeDir, 0)))
}

// AddFile implements Writer.
func (writer *TarGzWriter) AddFile(name, src string, mode fs.FileMode) error {
	file, err := os.Open(src)
	if err != nil {
		return errors.New(err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return errors.New(err)
	}

	if err := writer.tw.WriteHeader(writer.header(name, mode, tar.TypeReg, info.Size())); err != nil {
		return errors.New(err)
	}

	if _, err := io.Copy(writer.tw, file); err != nil {
		return errors.Errorf("failed to add %s: %w", src, err)
	}

	return nil
}

// AddBytes implements Writer.
func (writer *TarGzWriter) AddBytes(name string, data []byte, mode fs.FileMode) error {
	if err := writer.tw.WriteHeader(writer.header(name, mode, tar.TypeReg, int64(len(data)))); err != nil {
		return errors.New(err)
	}

	_, err := writer.tw.Write(data)

	return errors.WithStackTrace(err)
}

// Close implements Writer.
func (writer *TarGzWriter) Close() error {
	if err := writer.tw.Close(); err != nil {
		return errors.New(err)
	}

	return errors.WithStackTrace(writer.gw.Close())
}

func dirName(name string) string {
	return strings.TrimSuffix(path.Clean(name), "/") + "/"
}
