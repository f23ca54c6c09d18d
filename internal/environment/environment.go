// SPDX-License-Identifier: MPL-2.0

package environment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"glimmer-pipeline/internal/config"
	"glimmer-pipeline/pkg/cueutil"
	"glimmer-pipeline/pkg/moduleconfig"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultBlock is the top-level key whose values apply to every environment.
	DefaultBlock = "default"

	keyModulePrefix        = "modulePrefix"
	keyRootURL             = "rootURL"
	keyModuleConfiguration = "moduleConfiguration"
)

// Extensions lists the recognized environment config formats in lookup order.
var Extensions = []string{".cue", ".json", ".yaml", ".yml", ".toml"}

var (
	// ErrInvalidEnvironmentConfig is the sentinel error wrapped by InvalidEnvironmentConfigError.
	ErrInvalidEnvironmentConfig = errors.New("invalid environment config")
	// ErrMissingModulePrefix is returned when neither the environment config
	// nor package.json names the application.
	ErrMissingModulePrefix = errors.New("missing module prefix")
)

type (
	// LoadOptions locates the environment config of a project.
	LoadOptions struct {
		// ProjectDir is the project root.
		ProjectDir string
		// BasePath is the config path relative to ProjectDir without extension.
		BasePath string
		// Environment selects the block merged over the default block.
		Environment config.Environment
	}

	// Config is the environment config selected for one build.
	Config struct {
		// Environment is the build environment the config was selected for.
		Environment config.Environment
		// ModulePrefix is the application name used in specifiers.
		ModulePrefix string
		// RootURL replaces {{rootURL}} in index.html.
		RootURL string
		// ModuleConfiguration drives classification and the module map.
		ModuleConfiguration *moduleconfig.Resolved
		// Path is the file the config was read from, or "" when none exists.
		Path string

		values *yaml.Node
	}

	// InvalidEnvironmentConfigError is returned when the environment config
	// cannot be read or has the wrong shape.
	InvalidEnvironmentConfigError struct {
		Path string
		Err  error
	}

	packageJSON struct {
		Name string `yaml:"name"`
	}
)

// Error implements the error interface for InvalidEnvironmentConfigError.
func (e *InvalidEnvironmentConfigError) Error() string {
	return fmt.Sprintf("invalid environment config %s: %v", e.Path, e.Err)
}

// Unwrap returns both the sentinel and the underlying cause.
func (e *InvalidEnvironmentConfigError) Unwrap() []error {
	return []error{ErrInvalidEnvironmentConfig, e.Err}
}

// Load finds, parses and selects the environment config. A project without
// an environment config gets an empty block and the default module
// configuration.
func Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load environment config canceled: %w", ctx.Err())
	default:
	}

	if valid, errs := opts.Environment.IsValid(); !valid {
		return nil, errors.Join(errs...)
	}

	path, doc, err := readDocument(opts.ProjectDir, opts.BasePath)
	if err != nil {
		return nil, err
	}

	values, err := selectBlock(doc, opts.Environment)
	if err != nil {
		return nil, &InvalidEnvironmentConfigError{Path: path, Err: err}
	}

	cfg := &Config{Environment: opts.Environment, Path: path, values: values}

	if cfg.ModulePrefix, err = stringValue(values, keyModulePrefix); err != nil {
		return nil, &InvalidEnvironmentConfigError{Path: path, Err: err}
	}
	if cfg.RootURL, err = stringValue(values, keyRootURL); err != nil {
		return nil, &InvalidEnvironmentConfigError{Path: path, Err: err}
	}
	if cfg.ModulePrefix == "" {
		if cfg.ModulePrefix, err = packageName(opts.ProjectDir); err != nil {
			return nil, err
		}
	}

	moduleCfg := moduleconfig.Default()
	if node := lookup(values, keyModuleConfiguration); node != nil {
		if moduleCfg, err = moduleconfig.Decode(node); err != nil {
			return nil, &InvalidEnvironmentConfigError{Path: path, Err: err}
		}
	}
	if cfg.ModuleConfiguration, err = moduleconfig.Compile(moduleCfg); err != nil {
		return nil, &InvalidEnvironmentConfigError{Path: path, Err: err}
	}

	return cfg, nil
}

// Get returns the raw value node stored under key in the selected block.
func (c *Config) Get(key string) *yaml.Node {
	return lookup(c.values, key)
}

// JSON returns the selected block as JSON, keeping the key order of the
// source document. modulePrefix is always present.
func (c *Config) JSON() ([]byte, error) {
	values := c.values
	if lookup(values, keyModulePrefix) == nil {
		values = withEntry(values, keyModulePrefix, c.ModulePrefix)
	}
	var sb strings.Builder
	if err := writeJSON(&sb, values); err != nil {
		return nil, err
	}
	return []byte(sb.String()), nil
}

// Module renders config/environment.js.
func (c *Config) Module() ([]byte, error) {
	data, err := c.JSON()
	if err != nil {
		return nil, err
	}
	return []byte("export default " + string(data) + ";\n"), nil
}

// MetaModule renders config/environment.js for builds that carry the config
// in index.html. The module reads the meta tag instead of inlining the config.
func (c *Config) MetaModule() ([]byte, error) {
	selector, err := json.Marshal(fmt.Sprintf(`meta[name="%s/config/environment"]`, c.ModulePrefix))
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "const meta = document.querySelector(%s);\n", selector)
	b.WriteString("export default JSON.parse(decodeURIComponent(meta.getAttribute('content')));\n")
	return []byte(b.String()), nil
}

// MetaTag renders the config as a meta tag for index.html. The content is
// URL-escaped JSON so it survives attribute quoting.
func (c *Config) MetaTag() (string, error) {
	data, err := c.JSON()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`<meta name="%s/config/environment" content="%s" />`,
		c.ModulePrefix, url.PathEscape(string(data))), nil
}

func readDocument(projectDir, basePath string) (string, *yaml.Node, error) {
	for _, ext := range Extensions {
		path := filepath.Join(projectDir, filepath.FromSlash(basePath)+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", nil, &InvalidEnvironmentConfigError{Path: path, Err: err}
		}
		doc, err := parseDocument(path, ext, data)
		if err != nil {
			return "", nil, &InvalidEnvironmentConfigError{Path: path, Err: err}
		}
		return path, doc, nil
	}
	return "", nil, nil
}

func parseDocument(path, ext string, data []byte) (*yaml.Node, error) {
	switch ext {
	case ".cue":
		exported, err := cueutil.Export(data, cueutil.WithFilename(path))
		if err != nil {
			return nil, err
		}
		data = exported
	case ".toml":
		var m map[string]any
		if err := toml.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		// TOML tables carry no order; mapping keys come out sorted.
		var node yaml.Node
		if err := node.Encode(m); err != nil {
			return nil, err
		}
		return &node, nil
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	return &node, nil
}

// selectBlock deep-merges the environment block over the default block.
func selectBlock(doc *yaml.Node, env config.Environment) (*yaml.Node, error) {
	empty := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	root := unwrapDocument(doc)
	if root == nil {
		return empty, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: expected a mapping keyed by environment name", root.Line)
	}

	known := []string{DefaultBlock, string(config.EnvironmentDevelopment), string(config.EnvironmentProduction), string(config.EnvironmentTest)}
	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i]
		if !slices.Contains(known, key.Value) {
			return nil, fmt.Errorf("line %d: unknown top-level key %q (want one of %s)", key.Line, key.Value, strings.Join(known, ", "))
		}
		if value := resolveAlias(root.Content[i+1]); value.Kind != yaml.MappingNode && !isNull(value) {
			return nil, fmt.Errorf("line %d: block %q must be a mapping", key.Line, key.Value)
		}
	}

	block := empty
	if base := lookup(root, DefaultBlock); base != nil && !isNull(base) {
		block = base
	}
	if selected := lookup(root, string(env)); selected != nil && !isNull(selected) {
		block = mergeNodes(block, selected)
	}
	return block, nil
}

// mergeNodes returns base with overlay merged on top. Mappings merge key by
// key, keeping base order and appending new keys; any other overlay value
// replaces the base value. Neither input is modified.
func mergeNodes(base, overlay *yaml.Node) *yaml.Node {
	base, overlay = resolveAlias(base), resolveAlias(overlay)
	if base.Kind != yaml.MappingNode || overlay.Kind != yaml.MappingNode {
		return overlay
	}

	merged := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Line: overlay.Line}
	merged.Content = slices.Clone(base.Content)
	for i := 0; i+1 < len(overlay.Content); i += 2 {
		key, value := overlay.Content[i], overlay.Content[i+1]
		if idx := indexOf(merged, key.Value); idx >= 0 {
			merged.Content[idx+1] = mergeNodes(merged.Content[idx+1], value)
			continue
		}
		merged.Content = append(merged.Content, key, value)
	}
	return merged
}

func packageName(projectDir string) (string, error) {
	path := filepath.Join(projectDir, "package.json")
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: set modulePrefix in the environment config or name in package.json", ErrMissingModulePrefix)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read package.json: %w", err)
	}
	var pkg packageJSON
	if err := yaml.Unmarshal(data, &pkg); err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if pkg.Name == "" {
		return "", fmt.Errorf("%w: %s has no name", ErrMissingModulePrefix, path)
	}
	return pkg.Name, nil
}

func stringValue(block *yaml.Node, key string) (string, error) {
	node := lookup(block, key)
	if node == nil || isNull(node) {
		return "", nil
	}
	if node.Kind != yaml.ScalarNode || node.Tag != "!!str" {
		return "", fmt.Errorf("line %d: %s must be a string", node.Line, key)
	}
	return node.Value, nil
}

func lookup(mapping *yaml.Node, key string) *yaml.Node {
	mapping = resolveAlias(mapping)
	if mapping == nil || mapping.Kind != yaml.MappingNode {
		return nil
	}
	if idx := indexOf(mapping, key); idx >= 0 {
		return resolveAlias(mapping.Content[idx+1])
	}
	return nil
}

func indexOf(mapping *yaml.Node, key string) int {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return i
		}
	}
	return -1
}

func withEntry(mapping *yaml.Node, key, value string) *yaml.Node {
	out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	out.Content = append([]*yaml.Node{
		{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		{Kind: yaml.ScalarNode, Tag: "!!str", Value: value},
	}, mapping.Content...)
	return out
}

func unwrapDocument(node *yaml.Node) *yaml.Node {
	if node == nil {
		return nil
	}
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return nil
		}
		return resolveAlias(node.Content[0])
	}
	return resolveAlias(node)
}

func resolveAlias(node *yaml.Node) *yaml.Node {
	for node != nil && node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	return node
}

func isNull(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.Tag == "!!null"
}
