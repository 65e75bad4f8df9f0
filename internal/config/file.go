package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// DefaultFileName is looked up in the working directory when no config path is given.
const DefaultFileName = "patchsplit.json"

//go:embed schema.json
var fileSchema []byte

var (
	schemaLoader     gojsonschema.JSONLoader
	schemaLoaderErr  error
	schemaLoaderOnce sync.Once
)

// File is the on-disk profile configuration.
type File struct {
	Default  string    `json:"default,omitempty"`
	Profiles []Profile `json:"profiles"`
}

// SchemaError lists the JSON Schema violations of a config file.
type SchemaError struct {
	Path   string
	Issues []string
}

func (e *SchemaError) Error() string {
	if len(e.Issues) == 0 {
		return fmt.Sprintf("config: %s failed schema validation", e.Path)
	}
	return fmt.Sprintf("config: %s failed schema validation: %s", e.Path, strings.Join(e.Issues, "; "))
}

// LoadFile reads and validates a profile file. When optional is true a missing
// file yields an empty File instead of an error.
func LoadFile(path string, optional bool) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return &File{}, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return ParseFile(path, data)
}

// ParseFile validates raw JSON against the embedded schema and decodes it.
// Profiles inherit default file names for omitted paths.
func ParseFile(path string, data []byte) (*File, error) {
	loader, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("config: load schema: %w", err)
	}
	result, err := gojsonschema.Validate(loader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if !result.Valid() {
		issues := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			issues = append(issues, desc.String())
		}
		return nil, &SchemaError{Path: path, Issues: issues}
	}

	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	seen := make(map[string]struct{}, len(file.Profiles))
	for i := range file.Profiles {
		p := &file.Profiles[i]
		if _, dup := seen[p.Name]; dup {
			return nil, fmt.Errorf("config: %s defines profile %q more than once", path, p.Name)
		}
		seen[p.Name] = struct{}{}
		p.applyDefaults()
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	return &file, nil
}

func (p *Profile) applyDefaults() {
	if p.Input == "" {
		p.Input = DefaultInput
	}
	if p.OursOutput == "" {
		p.OursOutput = DefaultOursOutput
	}
	if p.ExistingOutput == "" {
		p.ExistingOutput = DefaultExistingOutput
	}
}

func loadSchema() (gojsonschema.JSONLoader, error) {
	schemaLoaderOnce.Do(func() {
		var doc map[string]any
		if err := json.Unmarshal(fileSchema, &doc); err != nil {
			schemaLoaderErr = err
			return
		}
		schemaLoader = gojsonschema.NewGoLoader(doc)
	})
	if schemaLoaderErr != nil {
		return nil, schemaLoaderErr
	}
	return schemaLoader, nil
}
