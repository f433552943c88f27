package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1 << 20
	configDirName     = ".config/docrag"
	systemConfigDir   = "/etc/docrag"
	configFileName    = "config.yaml"
)

// ErrConfigLocation is returned for config files outside the user and
// system config directories.
var ErrConfigLocation = errors.New("config file must be in ~/.config/docrag/ or /etc/docrag/")

// LoadWithFile builds the configuration from, in increasing precedence,
// Default, the YAML file at configPath and the environment. An empty
// configPath means ~/.config/docrag/config.yaml. A missing file is not an
// error.
//
// The file must live under ~/.config/docrag/ or /etc/docrag/ (symlinks
// resolved), be 0600 or 0400 and be at most 1MB; it may hold provider keys.
//
// Environment variables map onto keys by lowercasing and splitting at the
// first underscore:
//
//	SERVER_HTTP_PORT     -> server.http_port
//	RETRIEVAL_TOP_K      -> retrieval.top_k
//	PROVIDERS_GEMINI_KEY -> providers.gemini_key
func LoadWithFile(configPath string) (*Config, error) {
	if configPath == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		configPath = p
	}
	if err := validateConfigPath(configPath); err != nil {
		return nil, err
	}

	k := koanf.New(".")
	content, err := readConfigFile(configPath)
	if err != nil {
		return nil, err
	}
	if content != nil {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", configPath, err)
		}
	}
	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	// Unmarshal over the defaults so absent booleans keep their default.
	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultPath returns ~/.config/docrag/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, configDirName, configFileName), nil
}

// readConfigFile returns nil content for a missing file. Size and mode are
// checked on the open descriptor, not a second stat of the path.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if err := checkFileInfo(info); err != nil {
		return nil, err
	}
	// The limit also covers growth between Stat and read.
	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if len(content) > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: more than %d bytes", maxConfigFileSize)
	}
	return content, nil
}

func checkFileInfo(info fs.FileInfo) error {
	if info.IsDir() {
		return fmt.Errorf("config path %s is a directory", info.Name())
	}
	if runtime.GOOS != "windows" {
		if perm := info.Mode().Perm(); perm != 0o600 && perm != 0o400 {
			return fmt.Errorf("insecure config file permissions %v: want 0600 or 0400", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}

// envKey maps SECTION_FIELD_NAME onto section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(s)
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	return section + "." + field
}

// validateConfigPath accepts paths under the user or system config
// directory. Paths that do not exist yet are checked as written.
func validateConfigPath(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving config path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolving home directory: %w", err)
	}
	for _, dir := range []string{filepath.Join(home, configDirName), systemConfigDir} {
		if within(abs, dir) {
			return nil
		}
		if resolved, err := filepath.EvalSymlinks(dir); err == nil && within(abs, resolved) {
			return nil
		}
	}
	return ErrConfigLocation
}

// within reports whether path is dir or below it.
func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// WriteStarter writes a commented starter config to path, or the default
// path when empty, creating the directory 0700 and the file 0600. An
// existing file is kept unless overwrite is set. It returns the path and
// whether a file was written.
func WriteStarter(path string, overwrite bool) (string, bool, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return "", false, err
		}
		path = p
	}
	if err := validateConfigPath(path); err != nil {
		return path, false, err
	}
	if _, err := os.Stat(path); err == nil && !overwrite {
		return path, false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return path, false, fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(starterConfig), 0o600); err != nil {
		return path, false, fmt.Errorf("writing starter config: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(path, 0o600); err != nil {
		return path, false, fmt.Errorf("securing starter config: %w", err)
	}
	return path, true, nil
}

const starterConfig = `# docrag configuration. Environment variables override every key,
# e.g. PROVIDERS_GEMINI_KEY or RETRIEVAL_TOP_K.

server:
  host: localhost
  http_port: 9191

retrieval:
  target_chunk_size: 1000
  similarity_threshold: 0.35
  top_k: 5

embedding:
  provider: local   # local, openai, gemini, ollama

generation:
  provider: gemini  # gemini, openai, openrouter, ollama
  persona: analyst

providers:
  gemini_key: ""

store:
  driver: sqlite
  path: ~/.local/share/docrag/docrag.db

vectorstore:
  provider: exhaustive  # exhaustive, chromem, qdrant

logging:
  level: info
  format: json
`

// applyDefaults fills fields a file or the environment reset to zero.
func applyDefaults(cfg *Config) {
	setString(&cfg.Server.Host, "localhost")
	setInt(&cfg.Server.Port, 9191)
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 50 << 20
	}

	cfg.Retrieval.ApplyDefaults()

	// Everything runs locally except generation.
	setString(&cfg.Embedding.Provider, "local")
	setString(&cfg.Generation.Provider, "gemini")
	setString(&cfg.Generation.Persona, "analyst")

	setString(&cfg.Store.Driver, "sqlite")
	setString(&cfg.Store.Path, "~/.local/share/docrag/docrag.db")

	setString(&cfg.VectorStore.Provider, "exhaustive")
	setString(&cfg.VectorStore.QdrantHost, "localhost")
	setInt(&cfg.VectorStore.QdrantPort, 6334)

	setInt(&cfg.Ingest.EventBuffer, 64)
	setInt(&cfg.Ingest.PageConcurrency, 8)
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = Duration(500 * time.Millisecond)
	}

	setString(&cfg.Logging.Level, "info")
	setString(&cfg.Logging.Format, "json")

	setString(&cfg.Telemetry.Endpoint, "localhost:4317")
	setString(&cfg.Telemetry.Protocol, "grpc")
	setString(&cfg.Telemetry.ServiceName, "docrag")
	if cfg.Telemetry.SampleRate == 0 {
		cfg.Telemetry.SampleRate = 1.0
	}
}

func setString(p *string, v string) {
	if *p == "" {
		*p = v
	}
}

func setInt(p *int, v int) {
	if *p == 0 {
		*p = v
	}
}
