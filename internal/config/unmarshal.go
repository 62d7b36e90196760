package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML accepts model_id as either a scalar string or a list of
// strings, matching spec §6.2 ("model_id (string or list)").
func (b *BindingConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain BindingConfig
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*b = BindingConfig(p)

	var asList []string
	if err := b.modelIDNode(value).Decode(&asList); err == nil {
		b.ModelIDs = asList
		return nil
	}
	var asScalar string
	if err := b.modelIDNode(value).Decode(&asScalar); err == nil {
		b.ModelIDs = []string{asScalar}
		return nil
	}
	return fmt.Errorf("model_id must be a string or list of strings")
}

// modelIDNode finds the `model_id` child node inside a mapping node.
func (b *BindingConfig) modelIDNode(value *yaml.Node) *yaml.Node {
	for i := 0; i+1 < len(value.Content); i += 2 {
		if value.Content[i].Value == "model_id" {
			return value.Content[i+1]
		}
	}
	return &yaml.Node{}
}
