package i18n

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/pelletier/go-toml/v2"
)

//go:embed locales/*.toml
var localeFS embed.FS

// LocaleDir is the directory inside the embedded filesystem holding <code>.toml files.
const LocaleDir = "locales"

// Tree is a nested message tree: leaves are strings, branches are Trees.
type Tree = map[string]any

// Bundle holds one message tree per locale.
type Bundle struct {
	trees  map[Locale]Tree
	failed map[Locale]error
}

// NewBundle builds a bundle from in-memory trees. DefaultLocale must be present.
func NewBundle(trees map[Locale]Tree) (*Bundle, error) {
	if _, ok := trees[DefaultLocale]; !ok {
		return nil, fmt.Errorf("bundle has no %s messages", DefaultLocale)
	}
	return &Bundle{trees: trees, failed: map[Locale]error{}}, nil
}

// LoadBundle reads <dir>/<code>.toml for every supported locale. Only a
// failure of the default locale is fatal; other failures are reported by
// Failed and served from the default tree.
func LoadBundle(fsys fs.FS, dir string) (*Bundle, error) {
	b := &Bundle{trees: map[Locale]Tree{}, failed: map[Locale]error{}}
	for _, l := range Supported {
		tree, err := loadTree(fsys, path.Join(dir, string(l)+".toml"))
		if err != nil {
			b.failed[l] = err
			continue
		}
		b.trees[l] = tree
	}
	if err, ok := b.failed[DefaultLocale]; ok {
		return nil, fmt.Errorf("failed to load default locale: %w", err)
	}
	return b, nil
}

// LoadEmbedded loads the bundled message files.
func LoadEmbedded() (*Bundle, error) {
	return LoadBundle(localeFS, LocaleDir)
}

func loadTree(fsys fs.FS, name string) (Tree, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, err
	}
	var tree Tree
	if err := toml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	if len(tree) == 0 {
		return nil, fmt.Errorf("%s: %w", name, errors.New("no messages"))
	}
	return tree, nil
}

// Tree returns the messages for l, or the default locale's when l failed to load.
func (b *Bundle) Tree(l Locale) Tree {
	if tree, ok := b.trees[l]; ok {
		return tree
	}
	return b.trees[DefaultLocale]
}

// Failed returns the load error of every locale served from the default tree.
func (b *Bundle) Failed() map[Locale]error {
	return b.failed
}

// Keys returns every leaf key of l's tree as dot paths.
func (b *Bundle) Keys(l Locale) []string {
	var out []string
	collectKeys(b.Tree(l), "", &out)
	return out
}

func collectKeys(tree Tree, prefix string, out *[]string) {
	for k, v := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch t := v.(type) {
		case Tree:
			collectKeys(t, key, out)
		case string:
			*out = append(*out, key)
		}
	}
}
