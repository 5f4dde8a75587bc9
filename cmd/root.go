// Package cmd wires the storage stack's kernel, fsadapt and ambient
// layers behind a single cobra command, grounded on cmd/root.go's
// rootCmd/Execute split: cobra.Command for argument/flag parsing,
// viper-backed config resolution in OnInitialize, the actual mount
// deferred to a RunE that can return an error cobra prints and exits
// on.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/altushkaso/mikufs/internal/config"
)

var (
	cfgFile string
	cfg     *config.Config
	cfgErr  error
)

var rootCmd = &cobra.Command{
	Use:   "mikufs [flags] image mount_point",
	Short: "Mount a MikuFS ext2/3/4 image through a userspace FUSE adapter",
	Long: `mikufs mounts an ext2/3/4 disk image at mount_point, serving it
through a FUSE adapter backed by an in-process kernel-shaped VFS
(tmpfs/devfs/procfs) and on-disk engine rather than a real kernel
driver.`,
	Args: cobra.ExactArgs(2),
	RunE: func(c *cobra.Command, args []string) error {
		if cfgErr != nil {
			return cfgErr
		}
		return runMount(c, cfg)
	},
}

// Execute runs rootCmd, the same thin wrapper cmd/root.go's Execute
// provides around rootCmd.Execute.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "path to a YAML config file")
	config.BindFlags(rootCmd.PersistentFlags())
}

func initConfig() {
	cfg, cfgErr = config.Load(cfgFile, rootCmd.PersistentFlags())
}
