package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abelbrown/roundup/internal/config"
	"github.com/abelbrown/roundup/internal/model"
)

// File loads items from a JSON or YAML file: either a bare list of items
// or an object with an "items" list. Submissions may set a section.
type File struct {
	Path string
}

func (f File) Name() string { return filepath.Base(f.Path) }

func (f File) Fetch(ctx context.Context) ([]model.RawItem, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read items: %w", err)
	}
	items, err := decodeItems(data, strings.ToLower(filepath.Ext(f.Path)))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.Name(), err)
	}
	return items, nil
}

type itemList struct {
	Items []model.RawItem `json:"items" yaml:"items"`
}

func decodeItems(data []byte, ext string) ([]model.RawItem, error) {
	if ext == ".yaml" || ext == ".yml" {
		var items []model.RawItem
		if err := yaml.Unmarshal(data, &items); err == nil {
			return items, nil
		}
		var list itemList
		if err := yaml.Unmarshal(data, &list); err != nil {
			return nil, err
		}
		return list.Items, nil
	}

	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var items []model.RawItem
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	var list itemList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, err
	}
	return list.Items, nil
}

// Static serves a fixed item list. Useful for tests and piped input.
type Static struct {
	Label string
	Items []model.RawItem
}

func (s Static) Name() string { return s.Label }

func (s Static) Fetch(context.Context) ([]model.RawItem, error) {
	return append([]model.RawItem(nil), s.Items...), nil
}

// FromConfig creates a Feed for every configured source.
func FromConfig(sources []config.SourceConfig, timeout time.Duration) []Source {
	out := make([]Source, 0, len(sources))
	for _, s := range sources {
		out = append(out, NewFeed(s, timeout))
	}
	return out
}

// Files creates a File source per path.
func Files(paths []string) []Source {
	out := make([]Source, 0, len(paths))
	for _, p := range paths {
		out = append(out, File{Path: p})
	}
	return out
}
