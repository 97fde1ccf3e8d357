/*
Copyright © 2026 Deutsche Telekom AG.
*/
package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/telekom/rbac-lookup/docs"
	"github.com/telekom/rbac-lookup/pkg/docsite"
)

var (
	docsConfig string
	docsRoot   string
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Inspect the documentation site configuration",
	Long: `Inspect the sidebar configuration of the documentation site. Without
--config the configuration and documents embedded in the binary are used.`,
}

var docsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that every sidebar entry is well formed and links to a document",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, root, err := loadSiteConfig()
		if err != nil {
			return err
		}
		if err := docsite.Validate(cfg, root); err != nil {
			return fmt.Errorf("invalid sidebar configuration: %w", err)
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "sidebar configuration %q is valid\n", cfg.Title)
		return err
	},
}

var docsTreeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Print the rendered navigation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := loadSiteConfig()
		if err != nil {
			return err
		}
		return docsite.Tree(cmd.OutOrStdout(), docsite.Render(cfg))
	},
}

// loadSiteConfig returns the configuration selected by --config and the file
// system its paths resolve against.
func loadSiteConfig() (*docsite.SiteConfig, fs.FS, error) {
	if docsConfig == "" {
		data, err := fs.ReadFile(docs.FS, docs.ConfigFile)
		if err != nil {
			return nil, nil, fmt.Errorf("reading embedded site config: %w", err)
		}
		cfg, err := docsite.Parse(data)
		return cfg, docs.FS, err
	}

	cfg, err := docsite.Load(docsConfig)
	if err != nil {
		return nil, nil, err
	}
	root := docsRoot
	if root == "" {
		root = filepath.Dir(docsConfig)
	}
	return cfg, os.DirFS(root), nil
}

func init() {
	rootCmd.AddCommand(docsCmd)
	docsCmd.AddCommand(docsValidateCmd, docsTreeCmd)

	docsCmd.PersistentFlags().StringVar(&docsConfig, "config", "", "Path to a sidebar configuration (YAML or JSON). Defaults to the embedded configuration.")
	docsCmd.PersistentFlags().StringVar(&docsRoot, "root", "", "Directory the sidebar paths resolve against. Defaults to the directory of --config.")
}
