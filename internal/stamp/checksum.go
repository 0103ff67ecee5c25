package stamp

import (
	"bufio"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/distbuild/distbuild/internal/errors"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// Algorithm names a digest algorithm.
type Algorithm string

const (
	SHA256     Algorithm = "sha256"
	SHA512     Algorithm = "sha512"
	SHA3256    Algorithm = "sha3-256"
	BLAKE2b256 Algorithm = "blake2b-256"

	DefaultAlgorithm = SHA256
)

// Algorithms lists the supported algorithms.
var Algorithms = []Algorithm{SHA256, SHA512, SHA3256, BLAKE2b256}

// UnsupportedAlgorithmError is returned for an unknown algorithm name.
type UnsupportedAlgorithmError string

func (err UnsupportedAlgorithmError) Error() string {
	return fmt.Sprintf("unsupported checksum algorithm %q", string(err))
}

// ChecksumMismatchError is returned when an archive no longer matches its sidecar.
type ChecksumMismatchError struct {
	File     string
	Expected string
	Actual   string
}

func (err ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: sidecar has %s, archive hashes to %s", err.File, err.Expected, err.Actual)
}

// MalformedSidecarError is returned for a sidecar that is not a single `<hex>  <name>` line.
type MalformedSidecarError struct {
	Path string
}

func (err MalformedSidecarError) Error() string {
	return "malformed checksum file " + err.Path
}

// ParseAlgorithm resolves an algorithm name; the empty name is the default.
func ParseAlgorithm(name string) (Algorithm, error) {
	if name == "" {
		return DefaultAlgorithm, nil
	}

	for _, alg := range Algorithms {
		if strings.EqualFold(string(alg), name) {
			return alg, nil
		}
	}

	return "", errors.New(UnsupportedAlgorithmError(name))
}

// New returns a new hash for the algorithm.
func (alg Algorithm) New() (hash.Hash, error) {
	switch alg {
	case SHA256:
		return sha256.New(), nil
	case SHA512:
		return sha512.New(), nil
	case SHA3256:
		return sha3.New256(), nil
	case BLAKE2b256:
		return blake2b.New256(nil)
	}

	return nil, errors.New(UnsupportedAlgorithmError(alg))
}

// Extension is the sidecar suffix, e.g. ".sha256".
func (alg Algorithm) Extension() string {
	return "." + string(alg)
}

// Digest returns the hex digest of the file content.
func Digest(path string, alg Algorithm) (string, error) {
	digest, err := alg.New()
	if err != nil {
		return "", err
	}

	file, err := os.Open(path)
	if err != nil {
		return "", errors.New(err)
	}
	defer file.Close()

	if _, err := io.Copy(digest, file); err != nil {
		return "", errors.WithStackTraceAndPrefix(err, "hashing %s", path)
	}

	return hex.EncodeToString(digest.Sum(nil)), nil
}

// SidecarLine formats a sidecar line: the digest, two spaces, the base name and a newline.
func SidecarLine(digest, path string) string {
	return digest + "  " + filepath.Base(path) + "\n"
}

// Checksum hashes the file and writes the sidecar next to it. It returns the sidecar path.
func Checksum(path string, alg Algorithm) (string, error) {
	digest, err := Digest(path, alg)
	if err != nil {
		return "", err
	}

	sidecar := path + alg.Extension()

	if err := os.WriteFile(sidecar, []byte(SidecarLine(digest, path)), 0o644); err != nil {
		return "", errors.New(err)
	}

	return sidecar, nil
}

// ParseSidecar reads the digest and file name from a sidecar.
func ParseSidecar(path string) (string, string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", "", errors.New(err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	if !scanner.Scan() {
		return "", "", errors.New(MalformedSidecarError{Path: path})
	}

	digest, name, ok := strings.Cut(scanner.Text(), "  ")
	if !ok || digest == "" || name == "" {
		return "", "", errors.New(MalformedSidecarError{Path: path})
	}

	if _, err := hex.DecodeString(digest); err != nil {
		return "", "", errors.New(MalformedSidecarError{Path: path})
	}

	return digest, name, nil
}

// Verify recomputes the digest of the archive named by the sidecar, which lives next to it.
func Verify(sidecar string, alg Algorithm) error {
	expected, name, err := ParseSidecar(sidecar)
	if err != nil {
		return err
	}

	file := filepath.Join(filepath.Dir(sidecar), name)

	actual, err := Digest(file, alg)
	if err != nil {
		return err
	}

	if !strings.EqualFold(expected, actual) {
		return errors.New(ChecksumMismatchError{File: file, Expected: expected, Actual: actual})
	}

	return nil
}
