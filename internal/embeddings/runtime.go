package embeddings

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// DefaultONNXRuntimeVersion is the ONNX runtime release matching the
// onnxruntime_go binding pulled in by fastembed-go.
const DefaultONNXRuntimeVersion = "1.23.0"

// maxLibraryBytes bounds one extracted file.
const maxLibraryBytes = 512 << 20

// ErrUnsupportedPlatform indicates the current OS/arch has no ONNX release.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// release is one ONNX runtime archive published on GitHub.
type release struct {
	version  string
	platform string
	lib      string
}

func releaseFor(goos, goarch, version string) (release, error) {
	platforms := map[string]string{
		"linux/amd64":  "linux-x64",
		"linux/arm64":  "linux-aarch64",
		"darwin/amd64": "osx-x86_64",
		"darwin/arm64": "osx-arm64",
	}
	platform, ok := platforms[goos+"/"+goarch]
	if !ok {
		return release{}, fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, goos, goarch)
	}
	if version == "" {
		version = DefaultONNXRuntimeVersion
	}
	return release{version: version, platform: platform, lib: libraryName(goos)}, nil
}

func libraryName(goos string) string {
	if goos == "darwin" {
		return "libonnxruntime.dylib"
	}
	return "libonnxruntime.so"
}

func (r release) url() string {
	return fmt.Sprintf("https://github.com/microsoft/onnxruntime/releases/download/v%s/onnxruntime-%s-%s.tgz",
		r.version, r.platform, r.version)
}

// libDir is the archive directory holding the shared libraries.
func (r release) libDir() string {
	return fmt.Sprintf("onnxruntime-%s-%s/lib/", r.platform, r.version)
}

// ONNXInstallDir is where DownloadONNXRuntime places the library.
func ONNXInstallDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "docrag", "lib")
}

// ONNXLibraryPath returns the ONNX runtime library to load: ONNX_PATH when
// set, otherwise the managed install when present, otherwise "".
func ONNXLibraryPath() string {
	if p := os.Getenv("ONNX_PATH"); p != "" {
		return p
	}
	p := filepath.Join(ONNXInstallDir(), libraryName(runtime.GOOS))
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}

// DownloadONNXRuntime installs the ONNX runtime for the current platform
// into ONNXInstallDir. An empty version means DefaultONNXRuntimeVersion.
func DownloadONNXRuntime(ctx context.Context, version string) error {
	rel, err := releaseFor(runtime.GOOS, runtime.GOARCH, version)
	if err != nil {
		return err
	}
	return rel.install(ctx, http.DefaultClient, rel.url(), ONNXInstallDir())
}

// install fetches the archive at url and moves its libraries into dir.
// Files are extracted to a staging directory first so a failed download
// never leaves a partial library behind.
func (r release) install(ctx context.Context, client *http.Client, url, dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)
	}

	staging, err := os.MkdirTemp(dir, ".download-")
	if err != nil {
		return fmt.Errorf("creating staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	names, err := r.extract(resp.Body, staging)
	if err != nil {
		return fmt.Errorf("extracting archive: %w", err)
	}
	for _, name := range names {
		if err := os.Rename(filepath.Join(staging, name), filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("installing %s: %w", name, err)
		}
	}
	return nil
}

// extract writes the entries of the library directory into dir, flattened,
// and returns their names. Symlinks may only point at a sibling file.
func (r release) extract(archive io.Reader, dir string) ([]string, error) {
	gz, err := gzip.NewReader(archive)
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	var names []string
	found := false
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		rel, ok := strings.CutPrefix(strings.TrimPrefix(hdr.Name, "./"), r.libDir())
		if !ok || rel == "" || strings.Contains(rel, "/") {
			continue
		}

		dst := filepath.Join(dir, rel)
		switch hdr.Typeflag {
		case tar.TypeSymlink:
			if hdr.Linkname != filepath.Base(hdr.Linkname) || hdr.Linkname == ".." {
				return nil, fmt.Errorf("symlink %s points outside the library directory", rel)
			}
			if err := os.Symlink(hdr.Linkname, dst); err != nil {
				return nil, err
			}
		case tar.TypeReg:
			if err := copyLimited(dst, tr); err != nil {
				return nil, fmt.Errorf("writing %s: %w", rel, err)
			}
		default:
			continue
		}
		names = append(names, rel)
		if rel == r.lib || strings.HasPrefix(rel, r.lib+".") {
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("%s not found in archive", r.lib)
	}
	return names, nil
}

func copyLimited(path string, r io.Reader) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	n, err := io.Copy(f, io.LimitReader(r, maxLibraryBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > maxLibraryBytes {
		err = fmt.Errorf("larger than %d bytes", maxLibraryBytes)
	}
	return err
}

// EnsureONNXRuntime makes the ONNX runtime available to fastembed-go,
// downloading it when needed, and exports its location as ONNX_PATH.
func EnsureONNXRuntime(ctx context.Context) (string, error) {
	path := ONNXLibraryPath()
	if path == "" {
		if err := DownloadONNXRuntime(ctx, ""); err != nil {
			return "", fmt.Errorf("downloading ONNX runtime: %w (run 'docrag init' or set ONNX_PATH)", err)
		}
		if path = ONNXLibraryPath(); path == "" {
			return "", errors.New("ONNX runtime not found after download")
		}
	}
	if err := os.Setenv("ONNX_PATH", path); err != nil {
		return "", fmt.Errorf("setting ONNX_PATH: %w", err)
	}
	return path, nil
}
