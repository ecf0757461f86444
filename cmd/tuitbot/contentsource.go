package main

import (
	"encoding/json"
	"fmt"

	"github.com/aramirez087/tuitbot/internal/core"
	"github.com/aramirez087/tuitbot/internal/watchtower"
)

type sourceConfig struct {
	Path string `json:"path"`
}

// newContentProvider builds the watchtower.ContentSourceProvider a
// SourceContext row's Type names. config.ContentSource only carries a bare
// Path, so a "google_drive" row's Path is interpreted as a base URL with
// conventional list/download endpoints (see DESIGN.md) — there is no
// separate bearer-token field in that minimal schema, so remote-drive
// sources registered this way are unauthenticated until a richer config
// surface exists.
func newContentProvider(src core.SourceContext) (core.ContentSourceProvider, error) {
	var cfg sourceConfig
	if err := json.Unmarshal([]byte(src.ConfigJSON), &cfg); err != nil {
		return nil, fmt.Errorf("decode source %q config: %w", src.ID, err)
	}

	switch src.Type {
	case "local_fs":
		return watchtower.LocalFS{Root: cfg.Path}, nil
	case "google_drive":
		drive, err := watchtower.NewRemoteDrive(
			cfg.Path,
			"",
			cfg.Path+"/files",
			func(relativePath string) string { return cfg.Path + "/files/" + relativePath },
		)
		if err != nil {
			return nil, fmt.Errorf("build remote drive provider for source %q: %w", src.ID, err)
		}
		return drive, nil
	default:
		return nil, fmt.Errorf("unsupported content source type %q", src.Type)
	}
}
