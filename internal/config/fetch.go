package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	getter "github.com/hashicorp/go-getter"
)

// Fetch downloads a configuration file from any go-getter source (local
// path, http(s), s3, gcs, git) to dst and loads it.
func Fetch(ctx context.Context, src, dst string) (*Config, error) {
	if src == "" {
		return nil, errors.New("config source is empty")
	}
	if dst == "" {
		return nil, errors.New("config destination is empty")
	}
	if dir := filepath.Dir(dst); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create config directory: %w", err)
		}
	}

	pwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}

	client := &getter.Client{
		Ctx:  ctx,
		Src:  src,
		Dst:  dst,
		Pwd:  pwd,
		Mode: getter.ClientModeFile,
	}
	if err := client.Get(); err != nil {
		return nil, fmt.Errorf("fetch config %s: %w", src, err)
	}
	return Load(dst)
}
