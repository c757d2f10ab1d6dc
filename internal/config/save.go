package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// SaveProfiles replaces the profiles section of the config file.
// This preserves comments and formatting in other sections by using yaml.Node.
func SaveProfiles(configPath string, profiles []ProfileConfig) error {
	data, err := os.ReadFile(configPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}

	// Parse into yaml.Node to preserve comments
	var doc yaml.Node
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	profilesNode := buildProfilesNode(profiles)

	if doc.Kind == 0 {
		doc = yaml.Node{
			Kind: yaml.DocumentNode,
			Content: []*yaml.Node{
				{
					Kind: yaml.MappingNode,
					Content: []*yaml.Node{
						{Kind: yaml.ScalarNode, Value: "profiles"},
						profilesNode,
					},
				},
			},
		}
	} else if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		root := doc.Content[0]
		if root.Kind != yaml.MappingNode {
			return fmt.Errorf("parsing config: top level is not a mapping")
		}
		found := false
		for i := 0; i < len(root.Content)-1; i += 2 {
			if root.Content[i].Value == "profiles" {
				root.Content[i+1] = profilesNode
				found = true
				break
			}
		}
		if !found {
			root.Content = append(root.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: "profiles"},
				profilesNode,
			)
		}
	}

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&doc); err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	_ = encoder.Close()

	return writeAtomic(configPath, buf.Bytes())
}

// writeAtomic writes to a temp file in the same directory, then renames.
func writeAtomic(configPath string, data []byte) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, ".forknative.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tempPath, configPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// buildProfilesNode creates a yaml.Node representing the profiles array.
// Empty optional fields are omitted.
func buildProfilesNode(profiles []ProfileConfig) *yaml.Node {
	node := &yaml.Node{
		Kind:    yaml.SequenceNode,
		Content: make([]*yaml.Node, 0, len(profiles)),
	}
	if len(profiles) == 0 {
		node.Style = yaml.FlowStyle
	}

	for _, p := range profiles {
		pn := &yaml.Node{Kind: yaml.MappingNode}
		pn.Content = append(pn.Content, scalarPair("name", p.Name)...)
		pn.Content = append(pn.Content, scalarPair("path", p.Path)...)

		if len(p.Args) > 0 {
			pn.Content = append(pn.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: "args"}, stringSeq(p.Args))
		}
		if p.Silent != nil {
			pn.Content = append(pn.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: "silent"},
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(*p.Silent)},
			)
		}
		if p.Stdio != "" {
			pn.Content = append(pn.Content, scalarPair("stdio", p.Stdio)...)
		}
		if p.Dir != "" {
			pn.Content = append(pn.Content, scalarPair("dir", p.Dir)...)
		}
		if len(p.Env) > 0 {
			pn.Content = append(pn.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: "env"}, stringSeq(p.Env))
		}

		node.Content = append(node.Content, pn)
	}
	return node
}

func stringSeq(values []string) *yaml.Node {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, v := range values {
		seq.Content = append(seq.Content, stringNode(v))
	}
	return seq
}

func scalarPair(key, value string) []*yaml.Node {
	return []*yaml.Node{
		{Kind: yaml.ScalarNode, Value: key},
		stringNode(value),
	}
}

// stringNode tags the value as a string so "true" or "8080" survive a
// round trip unchanged.
func stringNode(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

// AddProfile adds p to the config file, replacing an existing profile with
// the same name in place.
func AddProfile(configPath string, p ProfileConfig, existing []ProfileConfig) error {
	if err := ValidateProfiles([]ProfileConfig{p}); err != nil {
		return err
	}
	updated := make([]ProfileConfig, 0, len(existing)+1)
	replaced := false
	for _, e := range existing {
		if e.Name == p.Name {
			updated = append(updated, p)
			replaced = true
			continue
		}
		updated = append(updated, e)
	}
	if !replaced {
		updated = append(updated, p)
	}
	return SaveProfiles(configPath, updated)
}

// DeleteProfile removes the profile called name and saves.
// Returns an error if no such profile exists.
func DeleteProfile(configPath string, name string, existing []ProfileConfig) error {
	updated := make([]ProfileConfig, 0, len(existing))
	for _, e := range existing {
		if e.Name != name {
			updated = append(updated, e)
		}
	}
	if len(updated) == len(existing) {
		return fmt.Errorf("profile %q not found", name)
	}
	return SaveProfiles(configPath, updated)
}
