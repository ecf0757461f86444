package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/aramirez087/tuitbot/internal/config"
	"github.com/aramirez087/tuitbot/internal/core"
	"github.com/aramirez087/tuitbot/internal/store/sqlite3"
)

const defaultBackupDir = "./data/backups"

var (
	flagBackupOutputDir string
	flagBackupList      bool
	flagBackupPrune      int
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Snapshot the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		a, err := newApp(cmd.Context(), flagConfigPath, false)
		if err != nil {
			return err
		}
		defer a.Close()

		dir := flagBackupOutputDir
		if dir == "" {
			dir = defaultBackupDir
		}

		switch {
		case flagBackupList:
			return listBackups(start, dir)
		case flagBackupPrune > 0:
			return pruneBackups(start, dir, flagBackupPrune)
		default:
			return createBackup(cmd, a, start, dir)
		}
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore PATH",
	Short: "Restore the database from a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()

		// Loads config only, never opens the store: a corrupted database
		// is often the reason a restore is being run, so restore must not
		// depend on that database opening cleanly first.
		cfg, err := config.Load(cmd.Context(), flagConfigPath)
		if err != nil {
			return emitError(start, core.Wrap(core.CodeValidationError, "load configuration", err))
		}
		if cfg.Store.SQLite == nil {
			return emitError(start, core.NewError(core.CodeValidationError, "restore is only supported for store.sqlite"))
		}
		datasource := cfg.Store.SQLite.Datasource

		if flagRestoreValidateOnly {
			if _, err := os.Stat(args[0]); err != nil {
				return emitError(start, core.Wrap(core.CodeValidationError, "backup archive not readable", err))
			}
			emit(start, map[string]string{"archive": args[0]}, func() {
				fmt.Println("archive is readable:", args[0])
			})
			return nil
		}

		if err := sqlite3.Restore(cmd.Context(), args[0], datasource); err != nil {
			return emitError(start, core.Wrap(core.CodeDBError, "restore from backup", err))
		}
		emit(start, map[string]string{"restored_from": args[0]}, func() {
			fmt.Println("restored from", args[0])
		})
		return nil
	},
}

var flagRestoreValidateOnly bool

func init() {
	backupCmd.Flags().StringVar(&flagBackupOutputDir, "output-dir", "", "directory to write backups into (default "+defaultBackupDir+")")
	backupCmd.Flags().BoolVar(&flagBackupList, "list", false, "list existing backups")
	backupCmd.Flags().IntVar(&flagBackupPrune, "prune", 0, "keep only the N newest backups, deleting the rest")

	restoreCmd.Flags().BoolVar(&flagRestoreValidateOnly, "validate-only", false, "check the archive is readable without restoring")
}

func createBackup(cmd *cobra.Command, a *app, start time.Time, dir string) error {
	store, ok := a.store.(*sqlite3.Store)
	if !ok {
		return emitError(start, core.NewError(core.CodeValidationError, "backup is only supported for store.sqlite"))
	}
	sqliteCfg := a.cfg.Store.SQLite
	if sqliteCfg == nil {
		return emitError(start, core.NewError(core.CodeValidationError, "backup is only supported for store.sqlite"))
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return emitError(start, core.Wrap(core.CodeDBError, "create backup directory", err))
	}

	destPath := filepath.Join(dir, fmt.Sprintf("tuitbot-%s.tar.gz", time.Now().UTC().Format("20060102T150405Z")))
	if err := store.Backup(cmd.Context(), sqliteCfg.Datasource, destPath); err != nil {
		return emitError(start, core.Wrap(core.CodeDBError, "write backup", err))
	}

	emit(start, map[string]string{"path": destPath}, func() {
		fmt.Println("wrote backup to", destPath)
	})
	return nil
}

func listBackups(start time.Time, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			emit(start, []string{}, func() { fmt.Println("no backups found") })
			return nil
		}
		return emitError(start, core.Wrap(core.CodeDBError, "read backup directory", err))
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	emit(start, names, func() {
		for _, n := range names {
			fmt.Println(n)
		}
	})
	return nil
}

func pruneBackups(start time.Time, dir string, keep int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return emitError(start, core.Wrap(core.CodeDBError, "read backup directory", err))
	}

	type fileInfo struct {
		name    string
		modTime time.Time
	}
	var files []fileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, fileInfo{name: e.Name(), modTime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].modTime.After(files[j].modTime) })

	var removed []string
	for i := keep; i < len(files); i++ {
		path := filepath.Join(dir, files[i].name)
		if err := os.Remove(path); err != nil {
			return emitError(start, core.Wrap(core.CodeDBError, fmt.Sprintf("remove %q", path), err))
		}
		removed = append(removed, files[i].name)
	}

	emit(start, map[string]any{"removed": removed, "kept": keep}, func() {
		fmt.Printf("removed %d backup(s), kept %d newest\n", len(removed), keep)
	})
	return nil
}
