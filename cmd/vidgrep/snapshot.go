package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"

	"github.com/hyperjump/vidgrep/internal/config"
	"github.com/hyperjump/vidgrep/internal/snapshot"
	"github.com/hyperjump/vidgrep/pkg/utils"
	"go.uber.org/zap"
)

func snapshotFiles(cfg *config.Config) snapshot.Files {
	return snapshot.Files{
		IndexPath:    cfg.Storage.IndexPath,
		MetadataPath: cfg.Storage.MetadataPath,
		DatabasePath: cfg.Storage.DatabasePath,
	}
}

func newRemote(cfg *config.Config, logger *zap.Logger) (*snapshot.Remote, error) {
	sc := cfg.Snapshot
	if !sc.RemoteEnabled() {
		return nil, errors.New("snapshot.endpoint and snapshot.bucket must be configured")
	}
	return snapshot.NewRemote(snapshot.RemoteConfig{
		Endpoint:  sc.Endpoint,
		Bucket:    sc.Bucket,
		Prefix:    sc.Prefix,
		AccessKey: sc.AccessKey,
		SecretKey: sc.SecretKey,
		UseSSL:    sc.UseSSL,
		Region:    sc.Region,
	}, logger)
}

// runSnapshot works on the store's files directly; stop a running server before restore.
func runSnapshot(args []string, stdout, stderr io.Writer) error {
	if len(args) < 1 {
		fmt.Fprintln(stderr, "Usage: vidgrep snapshot <export|restore|upload|download|list> [flags]")
		fmt.Fprintln(stderr, "  vidgrep snapshot export [--upload]      Write an archive to snapshot.dir")
		fmt.Fprintln(stderr, "  vidgrep snapshot restore <archive>      Replace the index with an archive")
		fmt.Fprintln(stderr, "  vidgrep snapshot upload <archive>       Copy an archive to the bucket")
		fmt.Fprintln(stderr, "  vidgrep snapshot download <key>         Fetch an archive into snapshot.dir")
		fmt.Fprintln(stderr, "  vidgrep snapshot list                   List archives in the bucket")
		return errors.New("snapshot subcommand is required")
	}
	sub := args[0]
	fs := flag.NewFlagSet("snapshot "+sub, flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	upload := fs.Bool("upload", false, "export: also upload the archive")
	restore := fs.Bool("restore", false, "download: also restore the archive")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := utils.NewCLILogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()
	ctx, cancel := signalContext()
	defer cancel()
	files := snapshotFiles(cfg)

	switch sub {
	case "export":
		path, err := snapshot.ExportFile(ctx, files, cfg.Snapshot.Dir, logger)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Exported: %s\n", path)
		if *upload {
			remote, err := newRemote(cfg, logger)
			if err != nil {
				return err
			}
			key, err := remote.Upload(ctx, path)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Uploaded: %s\n", key)
		}
	case "restore":
		if fs.NArg() < 1 {
			return errors.New("usage: vidgrep snapshot restore <archive>")
		}
		if err := snapshot.RestoreFile(ctx, files, fs.Arg(0)); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Restored: %s\n", fs.Arg(0))
	case "upload":
		if fs.NArg() < 1 {
			return errors.New("usage: vidgrep snapshot upload <archive>")
		}
		remote, err := newRemote(cfg, logger)
		if err != nil {
			return err
		}
		key, err := remote.Upload(ctx, fs.Arg(0))
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Uploaded: %s\n", key)
	case "download":
		if fs.NArg() < 1 {
			return errors.New("usage: vidgrep snapshot download <key>")
		}
		remote, err := newRemote(cfg, logger)
		if err != nil {
			return err
		}
		key := fs.Arg(0)
		path := filepath.Join(cfg.Snapshot.Dir, filepath.Base(key))
		if err := remote.Download(ctx, key, path); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Downloaded: %s\n", path)
		if *restore {
			if err := snapshot.RestoreFile(ctx, files, path); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Restored: %s\n", path)
		}
	case "list":
		remote, err := newRemote(cfg, logger)
		if err != nil {
			return err
		}
		keys, err := remote.List(ctx)
		if err != nil {
			return err
		}
		for _, k := range keys {
			fmt.Fprintln(stdout, k)
		}
	default:
		return fmt.Errorf("unknown snapshot subcommand: %s", sub)
	}
	return nil
}
