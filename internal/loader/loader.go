// Package loader reads YAML experiment configuration files into a cty
// configuration tree.
package loader

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/vk/chgresrun/internal/configtree"
	"github.com/vk/chgresrun/internal/ctxlog"
	"github.com/vk/chgresrun/internal/fsutil"
	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"
)

// Loader turns YAML files into a single configuration tree.
type Loader struct{}

// New creates a new YAML configuration loader.
func New() *Loader {
	return &Loader{}
}

// Load reads every given path, expanding directories to the YAML files they
// contain, and deep-merges the documents in order. Later files win.
func (l *Loader) Load(ctx context.Context, paths ...string) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := l.findAllYAMLFiles(paths)
	if err != nil {
		return cty.NilVal, err
	}
	if len(files) == 0 {
		return cty.NilVal, fmt.Errorf("no YAML configuration files found in %v", paths)
	}
	logger.Debug("Discovered configuration files.", "count", len(files))

	tree := cty.EmptyObjectVal
	for _, file := range files {
		doc, err := l.LoadFile(file)
		if err != nil {
			return cty.NilVal, err
		}
		tree = configtree.Merge(tree, doc)
		logger.Debug("Merged configuration file.", "path", file)
	}
	return tree, nil
}

// LoadFile reads a single YAML file.
func (l *Loader) LoadFile(path string) (cty.Value, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	v, err := Parse(raw)
	if err != nil {
		return cty.NilVal, fmt.Errorf("config %s: %w", path, err)
	}
	return v, nil
}

// Parse converts one YAML document into a tree. An empty document yields an
// empty tree; any other top-level value than a mapping is an error.
func Parse(data []byte) (cty.Value, error) {
	var document yaml.Node
	if err := yaml.Unmarshal(data, &document); err != nil {
		return cty.NilVal, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(document.Content) == 0 || document.Content[0] == nil {
		return cty.EmptyObjectVal, nil
	}

	root := document.Content[0]
	if root.Kind != yaml.MappingNode {
		return cty.NilVal, fmt.Errorf("top-level YAML document must be a mapping (line %d)", root.Line)
	}
	return nodeToCty(root)
}

// nodeToCty converts a YAML node. Mappings become objects and sequences
// become tuples. Scalars keep their YAML type where cty has one; timestamps
// and any unknown tags stay strings.
func nodeToCty(n *yaml.Node) (cty.Value, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return cty.NullVal(cty.DynamicPseudoType), nil
		}
		return nodeToCty(n.Content[0])

	case yaml.AliasNode:
		return nodeToCty(n.Alias)

	case yaml.MappingNode:
		attrs := make(map[string]cty.Value, len(n.Content)/2)
		var merged []cty.Value
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, val := n.Content[i], n.Content[i+1]
			if key.Kind != yaml.ScalarNode {
				return cty.NilVal, fmt.Errorf("line %d: mapping keys must be scalars", key.Line)
			}
			if key.ShortTag() == "!!merge" {
				base, err := mergeSources(val)
				if err != nil {
					return cty.NilVal, err
				}
				merged = append(merged, base...)
				continue
			}
			v, err := nodeToCty(val)
			if err != nil {
				return cty.NilVal, fmt.Errorf("%s: %w", key.Value, err)
			}
			attrs[key.Value] = v
		}
		obj := cty.ObjectVal(attrs)
		if len(merged) == 0 {
			return obj, nil
		}
		base := cty.EmptyObjectVal
		for _, m := range merged {
			base = configtree.Merge(base, m)
		}
		return configtree.Merge(base, obj), nil

	case yaml.SequenceNode:
		elems := make([]cty.Value, 0, len(n.Content))
		for i, item := range n.Content {
			v, err := nodeToCty(item)
			if err != nil {
				return cty.NilVal, fmt.Errorf("[%d]: %w", i, err)
			}
			elems = append(elems, v)
		}
		return cty.TupleVal(elems), nil

	case yaml.ScalarNode:
		return scalarToCty(n)
	}
	return cty.NilVal, fmt.Errorf("line %d: unsupported YAML node kind %d", n.Line, n.Kind)
}

func scalarToCty(n *yaml.Node) (cty.Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return cty.NullVal(cty.DynamicPseudoType), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return cty.NilVal, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return cty.BoolVal(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return cty.NilVal, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return cty.NumberIntVal(i), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return cty.NilVal, fmt.Errorf("line %d: %w", n.Line, err)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return cty.NilVal, fmt.Errorf("line %d: non-finite number %q is not supported", n.Line, n.Value)
		}
		return cty.NumberFloatVal(f), nil
	default:
		return cty.StringVal(n.Value), nil
	}
}

// mergeSources returns the mappings named by a "<<" merge key, which is
// either one mapping (usually an alias) or a sequence of them.
func mergeSources(n *yaml.Node) ([]cty.Value, error) {
	var nodes []*yaml.Node
	if n.Kind == yaml.SequenceNode {
		nodes = n.Content
	} else {
		nodes = []*yaml.Node{n}
	}

	out := make([]cty.Value, 0, len(nodes))
	for _, node := range nodes {
		v, err := nodeToCty(node)
		if err != nil {
			return nil, err
		}
		if !v.Type().IsObjectType() {
			return nil, fmt.Errorf("line %d: merge key must reference a mapping", node.Line)
		}
		out = append(out, v)
	}
	return out, nil
}

// findAllYAMLFiles walks all given paths and returns a flat list of the YAML
// files found. Files inside a directory are returned in lexical order.
func (l *Loader) findAllYAMLFiles(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]struct{})

	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		allFiles = append(allFiles, p)
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("error accessing config path %s: %w", path, err)
		}
		if !info.IsDir() {
			add(path)
			continue
		}

		found, err := fsutil.FindFilesByExtension(path, ".yaml", ".yml")
		if err != nil {
			return nil, fmt.Errorf("error walking config directory %s: %w", path, err)
		}
		for _, p := range found {
			add(p)
		}
	}
	return allFiles, nil
}
