package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch перечитывает YAML-файл cfg.Path при каждом изменении и отдаёт
// новую конфигурацию в onUpdate. Файл накладывается на исходную cfg, поэтому
// флаги и окружение после перезагрузки уступают файлу.
func Watch(ctx context.Context, cfg Config, zaplog *zap.Logger, onUpdate func(Config)) error {
	if cfg.Path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// следим за каталогом: редакторы часто заменяют файл целиком
	path := filepath.Clean(cfg.Path)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			next := cfg
			if err := LoadFile(path, &next); err != nil {
				zaplog.Warn("config reload failed", zap.String("path", path), zap.Error(err))
				continue
			}
			if err := Validate(next); err != nil {
				zaplog.Warn("config reload rejected", zap.String("path", path), zap.Error(err))
				continue
			}
			onUpdate(next)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			zaplog.Warn("config watcher error", zap.Error(err))
		}
	}
}
