// Copyright 2025 Andrew Khoury
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// generate-docs generates configuration documentation from config structs using reflection
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/drew/cirun/internal/config"
)

// FieldDoc represents documentation for a single field
type FieldDoc struct {
	Name        string
	Type        string
	Required    bool
	Default     string
	Description string
	ValidValues []string
}

// SectionDoc represents documentation for a config section
type SectionDoc struct {
	Name        string
	Description string
	Array       bool // [[name]] table array
	Fields      []FieldDoc
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "--help" {
		fmt.Println("Usage: generate-docs [output-dir]")
		fmt.Println("Generates documentation from config structs:")
		fmt.Println("  - cirun.example.toml")
		fmt.Println("  - cirun.schema.json")
		fmt.Println("  - docs/configuration.md")
		return
	}

	outDir := "."
	if len(os.Args) > 1 {
		outDir = os.Args[1]
	}

	docs := buildDocumentation()

	if err := generateExampleTOML(outDir, docs); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating cirun.example.toml: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✓ Generated cirun.example.toml")

	if err := generateJSONSchema(outDir, docs); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating cirun.schema.json: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✓ Generated cirun.schema.json")

	if err := generateMarkdownDocs(outDir, docs); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating docs/configuration.md: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✓ Generated docs/configuration.md")
}

func buildDocumentation() []SectionDoc {
	defaults := config.GetDefaults()

	roots := extractSection("roots", "Source trees searched for test modules. Repeat the table once per root.", config.RootConfig{}, config.RootConfig{})
	roots.Array = true

	return []SectionDoc{
		extractSection("defaults", "Run-wide settings", defaults.Defaults, defaults.Defaults),
		extractSection("coverage", "Coverage recording and report publishing", defaults.Coverage, defaults.Coverage),
		roots,
	}
}

// extractSection uses reflection to extract field documentation from struct tags
func extractSection(name, description string, value interface{}, defaultValue interface{}) SectionDoc {
	section := SectionDoc{
		Name:        name,
		Description: description,
		Fields:      []FieldDoc{},
	}

	t := reflect.TypeOf(value)
	v := reflect.ValueOf(defaultValue)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		docTag := field.Tag.Get("doc")
		tomlTag := field.Tag.Get("toml")
		if docTag == "" || tomlTag == "" {
			continue
		}

		fieldDoc := FieldDoc{
			Name:        tomlTag,
			Type:        getFieldType(field.Type),
			Required:    field.Tag.Get("required") == "true",
			Description: docTag,
			Default:     getDefaultValue(v.Field(i), field.Type),
		}
		if enumTag := field.Tag.Get("enum"); enumTag != "" {
			fieldDoc.ValidValues = strings.Split(enumTag, ",")
		}

		section.Fields = append(section.Fields, fieldDoc)
	}

	return section
}

// getFieldType returns a string representation of the field type
func getFieldType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "int"
	case reflect.Bool:
		return "bool"
	case reflect.Ptr:
		return getFieldType(t.Elem())
	case reflect.Slice:
		return "[]" + getFieldType(t.Elem())
	default:
		return t.String()
	}
}

// getDefaultValue returns the default value as a TOML literal
func getDefaultValue(v reflect.Value, t reflect.Type) string {
	if t.Kind() == reflect.Ptr {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.String:
		if v.String() == "" {
			return ""
		}
		return fmt.Sprintf("%q", v.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fmt.Sprintf("%d", v.Int())
	case reflect.Bool:
		if v.Bool() {
			return "true"
		}
		return "false"
	case reflect.Slice:
		if v.Len() == 0 {
			return ""
		}
		items := make([]string, v.Len())
		for i := range items {
			items[i] = getDefaultValue(v.Index(i), t.Elem())
		}
		return "[" + strings.Join(items, ", ") + "]"
	default:
		return ""
	}
}

func generateExampleTOML(outDir string, docs []SectionDoc) error {
	var sb strings.Builder

	sb.WriteString(`# =============================================================================
# cirun Configuration Reference
# =============================================================================
# This is a comprehensive example showing ALL available configuration options.
# Copy sections you need to your own cirun.toml.
#
# Quick Start:
#   [[roots]]
#   path = "tests"
# =============================================================================

`)

	for _, section := range docs {
		sb.WriteString("# -----------------------------------------------------------------------------\n")
		sb.WriteString(fmt.Sprintf("# [%s] - %s\n", section.Name, section.Description))
		sb.WriteString("# -----------------------------------------------------------------------------\n\n")

		if section.Array {
			sb.WriteString(fmt.Sprintf("[[%s]]\n", section.Name))
		} else {
			sb.WriteString(fmt.Sprintf("[%s]\n", section.Name))
		}

		for _, field := range section.Fields {
			sb.WriteString(fmt.Sprintf("# %s\n", field.Description))
			if field.Required {
				sb.WriteString("# Required: yes\n")
			} else if field.Default != "" {
				sb.WriteString(fmt.Sprintf("# Default: %s\n", field.Default))
			}
			if len(field.ValidValues) > 0 {
				sb.WriteString(fmt.Sprintf("# Valid values: %s\n", strings.Join(field.ValidValues, ", ")))
			}

			switch {
			case field.Default != "":
				sb.WriteString(fmt.Sprintf("%s = %s\n", field.Name, field.Default))
			case field.Required:
				sb.WriteString(fmt.Sprintf("%s = %q\n", field.Name, "tests"))
			default:
				sb.WriteString(fmt.Sprintf("# %s = \n", field.Name))
			}
			sb.WriteString("\n")
		}

		sb.WriteString("\n")
	}

	return os.WriteFile(filepath.Join(outDir, "cirun.example.toml"), []byte(sb.String()), 0644)
}

func fieldSchema(field FieldDoc) map[string]interface{} {
	schema := map[string]interface{}{
		"description": field.Description,
	}

	switch {
	case field.Type == "string":
		schema["type"] = "string"
	case field.Type == "int":
		schema["type"] = "integer"
	case field.Type == "bool":
		schema["type"] = "boolean"
	case strings.HasPrefix(field.Type, "[]"):
		schema["type"] = "array"
		schema["items"] = map[string]interface{}{"type": "string"}
	}

	if field.Default != "" {
		var def interface{}
		// TOML literals for these types are valid JSON
		if err := json.Unmarshal([]byte(field.Default), &def); err == nil {
			schema["default"] = def
		}
	}
	if len(field.ValidValues) > 0 {
		schema["enum"] = field.ValidValues
	}
	return schema
}

func generateJSONSchema(outDir string, docs []SectionDoc) error {
	properties := make(map[string]interface{})
	schema := map[string]interface{}{
		"$schema":     "http://json-schema.org/draft-07/schema#",
		"title":       "cirun Configuration",
		"description": "Configuration schema for the cirun test orchestrator",
		"type":        "object",
		"properties":  properties,
	}

	for _, section := range docs {
		fields := make(map[string]interface{})
		var required []string
		for _, field := range section.Fields {
			fields[field.Name] = fieldSchema(field)
			if field.Required {
				required = append(required, field.Name)
			}
		}

		sectionSchema := map[string]interface{}{
			"type":                 "object",
			"description":          section.Description,
			"properties":           fields,
			"additionalProperties": false,
		}
		if len(required) > 0 {
			sectionSchema["required"] = required
		}

		if section.Array {
			properties[section.Name] = map[string]interface{}{
				"type":        "array",
				"description": section.Description,
				"items":       sectionSchema,
			}
			continue
		}
		properties[section.Name] = sectionSchema
	}

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(outDir, "cirun.schema.json"), data, 0644)
}

func generateMarkdownDocs(outDir string, docs []SectionDoc) error {
	var sb strings.Builder

	sb.WriteString("# Configuration\n\n")
	sb.WriteString("cirun reads `cirun.toml` from the working directory, or the file passed with `-config`.\n")
	sb.WriteString("Command line flags override values from the file. Run `cirun validate` to check a file\n")
	sb.WriteString("and `cirun init` to write a starter config.\n\n")

	for _, section := range docs {
		name := "[" + section.Name + "]"
		if section.Array {
			name = "[" + name + "]"
		}
		sb.WriteString("### `" + name + "`\n\n")
		sb.WriteString(section.Description + "\n\n")

		sb.WriteString("| Field | Type | Required | Default | Description |\n")
		sb.WriteString("|-------|------|----------|---------|-------------|\n")

		for _, field := range section.Fields {
			required := "No"
			if field.Required {
				required = "**Yes**"
			}
			defaultVal := field.Default
			if defaultVal == "" {
				defaultVal = "-"
			}
			desc := field.Description
			if len(field.ValidValues) > 0 {
				desc += fmt.Sprintf(" (valid: `%s`)", strings.Join(field.ValidValues, "`, `"))
			}
			sb.WriteString(fmt.Sprintf("| `%s` | %s | %s | `%s` | %s |\n",
				field.Name, field.Type, required, defaultVal, desc))
		}

		sb.WriteString("\n")
	}

	docsDir := filepath.Join(outDir, "docs")
	if err := os.MkdirAll(docsDir, 0755); err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(docsDir, "configuration.md"), []byte(sb.String()), 0644)
}
