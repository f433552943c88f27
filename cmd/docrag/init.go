package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/docrag/internal/config"
	"github.com/fyrsmithlabs/docrag/internal/embeddings"
)

var (
	forceInit   bool
	skipRuntime bool
)

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "overwrite the config and re-download the runtime")
	initCmd.Flags().BoolVar(&skipRuntime, "no-runtime", false, "only write the config file")
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config and install the local embedding runtime",
	Long: `Write a starter config to ~/.config/docrag/config.yaml (or --config)
with 0600 permissions, then download the ONNX runtime used by the local
embedding provider into ~/.config/docrag/lib/. ONNX_PATH, when set, names
an existing runtime instead.

Examples:
  docrag init
  docrag init --no-runtime
  docrag init --force`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, _ []string) error {
	path, wrote, err := config.WriteStarter(configPath, forceInit)
	if err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if wrote {
		cmd.Printf("Wrote starter config to %s\n", path)
	} else {
		cmd.Printf("Keeping existing config at %s\n", path)
	}
	if skipRuntime {
		return nil
	}

	if lib := embeddings.ONNXLibraryPath(); lib != "" && !forceInit {
		cmd.Printf("ONNX runtime present at %s\n", lib)
		return nil
	}
	cmd.Printf("Downloading ONNX runtime v%s\n", embeddings.DefaultONNXRuntimeVersion)
	if err := embeddings.DownloadONNXRuntime(cmd.Context(), ""); err != nil {
		return fmt.Errorf("downloading ONNX runtime: %w", err)
	}
	lib := embeddings.ONNXLibraryPath()
	if lib == "" {
		return fmt.Errorf("ONNX runtime not found after download")
	}
	cmd.Printf("Installed ONNX runtime to %s\n", lib)
	return nil
}
