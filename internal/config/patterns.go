package config

import (
	"fmt"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// PatternList is an ordered list of alternative regular expressions for one entity kind.
// Configuration files may give a single pattern string or a list.
type PatternList []string

// UnmarshalJSON accepts either a string or an array of strings.
func (p *PatternList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*p = PatternList{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("pattern must be a string or list of strings: %w", err)
	}
	*p = list
	return nil
}

// UnmarshalYAML accepts either a scalar or a sequence.
func (p *PatternList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*p = PatternList{node.Value}
		return nil
	}
	var list []string
	if err := node.Decode(&list); err != nil {
		return fmt.Errorf("pattern must be a string or list of strings: %w", err)
	}
	*p = list
	return nil
}
