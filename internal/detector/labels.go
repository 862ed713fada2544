package detector

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Labels maps a model's class ids to class names.
type Labels map[int]string

// Name returns the class name for id, or "class_<id>" when the table has no entry.
func (l Labels) Name(id int) string {
	if name, ok := l[id]; ok {
		return name
	}
	return fmt.Sprintf("class_%d", id)
}

// LoadLabels reads an ultralytics-style data file. The names key may be
// a mapping ({0: leaf_spot, 1: gray_mold}) or a list ([leaf_spot, gray_mold]).
func LoadLabels(path string) (Labels, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read labels %s: %v", ErrModelLoad, path, err)
	}
	return ParseLabels(data)
}

// ParseLabels parses the YAML body of a labels file.
func ParseLabels(data []byte) (Labels, error) {
	var doc struct {
		Names yaml.Node `yaml:"names"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse labels: %v", ErrModelLoad, err)
	}

	labels := make(Labels)
	switch doc.Names.Kind {
	case yaml.MappingNode:
		var m map[int]string
		if err := doc.Names.Decode(&m); err != nil {
			return nil, fmt.Errorf("%w: decode names: %v", ErrModelLoad, err)
		}
		for id, name := range m {
			labels[id] = name
		}
	case yaml.SequenceNode:
		var list []string
		if err := doc.Names.Decode(&list); err != nil {
			return nil, fmt.Errorf("%w: decode names: %v", ErrModelLoad, err)
		}
		for id, name := range list {
			labels[id] = name
		}
	default:
		return nil, fmt.Errorf("%w: labels file has no names", ErrModelLoad)
	}

	if len(labels) == 0 {
		return nil, fmt.Errorf("%w: labels file has no names", ErrModelLoad)
	}
	return labels, nil
}
