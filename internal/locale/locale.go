// Package locale serves bot texts from a YAML catalog of
// key -> language -> text. Missing keys render as the key itself.
package locale

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/m3rciful/shiftbot/core/logger"
)

//go:embed default.yaml
var defaultCatalog []byte

type messages map[string]map[string]string

// Catalog is safe for concurrent use; Reload swaps the whole table.
type Catalog struct {
	path        string
	defaultLang string
	table       atomic.Pointer[messages]
}

// New loads the embedded catalog and overlays the file at path, if any.
func New(path, defaultLang string) (*Catalog, error) {
	if defaultLang == "" {
		defaultLang = "ru"
	}
	c := &Catalog{path: strings.TrimSpace(path), defaultLang: strings.ToLower(defaultLang)}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// DefaultLang is used when the user's language has no translation.
func (c *Catalog) DefaultLang() string { return c.defaultLang }

// Reload re-reads the overlay file.
func (c *Catalog) Reload() error {
	table, err := parse(defaultCatalog)
	if err != nil {
		return fmt.Errorf("embedded catalog: %w", err)
	}
	if c.path != "" {
		raw, err := os.ReadFile(c.path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return fmt.Errorf("read catalog %s: %w", c.path, err)
		default:
			overlay, err := parse(raw)
			if err != nil {
				return fmt.Errorf("parse catalog %s: %w", c.path, err)
			}
			for key, langs := range overlay {
				if table[key] == nil {
					table[key] = map[string]string{}
				}
				for lang, text := range langs {
					table[key][lang] = text
				}
			}
		}
	}
	c.table.Store(&table)
	return nil
}

func parse(raw []byte) (messages, error) {
	var table messages
	if err := yaml.Unmarshal(raw, &table); err != nil {
		return nil, err
	}
	if table == nil {
		table = messages{}
	}
	for key, langs := range table {
		norm := make(map[string]string, len(langs))
		for lang, text := range langs {
			norm[strings.ToLower(lang)] = text
		}
		table[key] = norm
	}
	return table, nil
}

// Text renders key in lang, falling back to the default language and then
// to the key. args are applied with fmt.Sprintf.
func (c *Catalog) Text(lang, key string, args ...any) string {
	tmpl := c.lookup(lang, key)
	if len(args) == 0 {
		return tmpl
	}
	return fmt.Sprintf(tmpl, args...)
}

// Has reports whether the catalog knows key.
func (c *Catalog) Has(key string) bool {
	_, ok := (*c.table.Load())[key]
	return ok
}

func (c *Catalog) lookup(lang, key string) string {
	langs, ok := (*c.table.Load())[key]
	if !ok {
		return key
	}
	lang = strings.ToLower(lang)
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	if text, ok := langs[lang]; ok {
		return text
	}
	if text, ok := langs[c.defaultLang]; ok {
		return text
	}
	return key
}

// Watch reloads the overlay file whenever it changes until ctx ends. The
// parent directory is watched so editors that replace the file are seen.
func (c *Catalog) Watch(ctx context.Context) error {
	if c.path == "" {
		<-ctx.Done()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(c.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(c.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := c.Reload(); err != nil {
				logger.Warn(ctx, "locale", "locale.reload",
					slog.String("status", "fail"),
					slog.String("err", err.Error()),
				)
				continue
			}
			logger.Info(ctx, "locale", "locale.reload", slog.String("status", "ok"))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error(ctx, "locale", "locale.watch", slog.String("err", err.Error()))
		}
	}
}
