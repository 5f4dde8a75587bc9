package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/altushkaso/mikufs/internal/blockdev"
	"github.com/altushkaso/mikufs/internal/config"
	"github.com/altushkaso/mikufs/internal/fsadapt"
	"github.com/altushkaso/mikufs/internal/kernel"
	"github.com/altushkaso/mikufs/internal/logger"
	"github.com/altushkaso/mikufs/internal/metrics"
	"github.com/altushkaso/mikufs/internal/tracing"
	"github.com/altushkaso/mikufs/internal/vfs"
)

func fsTypeFor(name string) (vfs.FsType, error) {
	switch name {
	case "ext2", "ext3", "ext4":
		return vfs.MikuFS, nil
	default:
		return 0, fmt.Errorf("unsupported fs-type %q", name)
	}
}

// realClock satisfies kernel.Clock with the wall clock, the Clock
// implementation a live mount needs in place of a SimulatedClock.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// runMount is mountWithStorageHandle's equivalent for this storage
// stack: open the backing image, boot a Kernel, mount MikuFS onto it,
// wrap the result in a fsadapt.FileSystem and hand that to
// fuse.Mount, joining until a signal (or an external fuse.Unmount
// call) triggers teardown.
func runMount(c *cobra.Command, cfg *config.Config) error {
	log := logger.New(cfg.Log)
	log = log.With("session", uuid.New().String())

	shutdownTracing, err := tracing.Init(context.Background(), cfg.Tracing.Enabled, "mikufs")
	if err != nil {
		return fmt.Errorf("tracing.Init: %w", err)
	}
	defer shutdownTracing(context.Background())

	_, span := tracing.Tracer().Start(context.Background(), "mount")
	defer span.End()

	fsType, err := fsTypeFor(cfg.FsType)
	if err != nil {
		return err
	}

	dev, err := blockdev.OpenFileDevice(cfg.ImagePath, cfg.BlockSize, cfg.ReadOnly)
	if err != nil {
		return fmt.Errorf("opening image %s: %w", cfg.ImagePath, err)
	}

	k := kernel.New(os.Stderr)
	if _, err := k.Mount(0, "/mnt", fsType, dev, realClock{}, log); err != nil {
		dev.Close()
		return fmt.Errorf("mounting %s: %w", cfg.ImagePath, err)
	}

	var rec *metrics.Recorder
	var g errgroup.Group
	var srv *http.Server
	if cfg.Metrics.Enabled {
		rec = metrics.New()
		srv = &http.Server{Addr: cfg.Metrics.Addr, Handler: rec.Handler()}
		defer srv.Close()
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	fa := fsadapt.New(k, cfg.Uid, cfg.Gid).WithMetrics(rec)
	server := fuseutil.NewFileSystemServer(fa)

	mfs, err := fuse.Mount(cfg.MountPoint, server, &fuse.MountConfig{
		FSName:     "mikufs",
		Subtype:    "mikufs",
		VolumeName: "mikufs",
	})
	if err != nil {
		return fmt.Errorf("fuse.Mount: %w", err)
	}

	registerSignalUnmount(cfg.MountPoint, log)
	log.Info("mounted", "image", cfg.ImagePath, "mount_point", cfg.MountPoint, "fs_type", cfg.FsType)

	if err := mfs.Join(context.Background()); err != nil {
		return fmt.Errorf("MountedFileSystem.Join: %w", err)
	}

	if cfg.Metrics.Enabled {
		srv.Close()
		return g.Wait()
	}
	return nil
}

// registerSignalUnmount triggers a clean fuse.Unmount on SIGINT/
// SIGTERM, the same retry-until-it-works loop cmd/legacy_main.go's
// registerSIGINTHandler runs, generalized to also catch SIGTERM.
func registerSignalUnmount(mountPoint string, log *slog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		for range sigCh {
			log.Info("received shutdown signal, unmounting")
			if err := fuse.Unmount(mountPoint); err != nil {
				log.Error("unmount failed", "error", err)
				continue
			}
			return
		}
	}()
}
