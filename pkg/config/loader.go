package config

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

type tree = map[string]any

var placeholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// LoadLayered decodes configDir into out. Layers, later wins:
//
//	base.yaml
//	<env>.yaml        (optional)
//	${VAR}            secrets.env first, then the process environment
//
// Placeholders that resolve nowhere become "" so Validate can name them.
func LoadLayered(env, configDir string, out any) error {
	if configDir == "" {
		configDir = "config"
	}

	merged, err := readTree(filepath.Join(configDir, "base.yaml"))
	if err != nil {
		return err
	}
	if env != "" && env != "base" {
		overlay, err := readTree(filepath.Join(configDir, env+".yaml"))
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return err
		default:
			merged = overlayTree(merged, overlay)
		}
	}

	secrets, err := readDotEnv(filepath.Join(configDir, "secrets.env"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	lookup := func(name string) string {
		if v, ok := secrets[name]; ok {
			return v
		}
		return os.Getenv(name)
	}
	expandTree(merged, lookup)

	// round trip through yaml so struct tags handle durations, bools and ints
	raw, err := yaml.Marshal(merged)
	if err != nil {
		return fmt.Errorf("encode merged config: %w", err)
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode merged config: %w", err)
	}
	return nil
}

func readTree(path string) (tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	t := tree{}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return t, nil
}

// readDotEnv parses KEY=VALUE lines; blank lines and # comments are skipped.
func readDotEnv(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read secrets: %w", err)
	}
	vars := map[string]string{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		vars[strings.TrimSpace(k)] = strings.Trim(strings.TrimSpace(v), `"'`)
	}
	return vars, sc.Err()
}

// overlayTree deep-merges top onto base in a new tree.
func overlayTree(base, top tree) tree {
	out := make(tree, len(base))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range top {
		if sub, ok := v.(tree); ok {
			if prev, ok := out[k].(tree); ok {
				out[k] = overlayTree(prev, sub)
				continue
			}
		}
		out[k] = v
	}
	return out
}

// expandTree replaces ${VAR} in every string leaf, in place.
func expandTree(t tree, lookup func(string) string) {
	for k, v := range t {
		switch val := v.(type) {
		case string:
			t[k] = placeholder.ReplaceAllStringFunc(val, func(m string) string {
				return lookup(m[2 : len(m)-1])
			})
		case tree:
			expandTree(val, lookup)
		}
	}
}
