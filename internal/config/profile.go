package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/asynkron/patchsplit/pkg/patch"
)

// Default file names shared by the built-in profiles.
const (
	DefaultInput          = "repo.diff"
	DefaultOursOutput     = "our_patch.diff"
	DefaultExistingOutput = "existing_patch.diff"
	DefaultProfile        = "default"
)

// Profile is a named, reusable split configuration.
type Profile struct {
	Name           string `json:"name" validate:"required"`
	Input          string `json:"input" validate:"required"`
	Marker         string `json:"marker" validate:"required"`
	Encoding       string `json:"encoding,omitempty" validate:"omitempty,oneof=default utf-8 utf8 utf-16 utf16 utf-16le utf16le utf-16be utf16be"`
	OursOutput     string `json:"ours" validate:"required"`
	ExistingOutput string `json:"existing" validate:"required,nefield=OursOutput"`
}

// Builtins returns the profiles available without a config file. They match
// the two historical split scripts: one reading the platform encoding, one
// reading UTF-16.
func Builtins() map[string]Profile {
	return map[string]Profile{
		"default": {
			Name:           "default",
			Input:          DefaultInput,
			Marker:         "@@ -583",
			Encoding:       "default",
			OursOutput:     DefaultOursOutput,
			ExistingOutput: DefaultExistingOutput,
		},
		"utf16": {
			Name:           "utf16",
			Input:          DefaultInput,
			Marker:         "@@ -591",
			Encoding:       "utf-16",
			OursOutput:     DefaultOursOutput,
			ExistingOutput: DefaultExistingOutput,
		},
	}
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func profileValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks required fields and the encoding name.
func (p Profile) Validate() error {
	p.Encoding = strings.ToLower(strings.TrimSpace(p.Encoding))
	err := profileValidator().Struct(p)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config: validate profile %q: %w", p.Name, err)
	}
	issues := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		issues = append(issues, describeFieldError(fe))
	}
	name := p.Name
	if name == "" {
		name = "<unnamed>"
	}
	return fmt.Errorf("config: invalid profile %q: %s", name, strings.Join(issues, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s %q is not a supported encoding", fe.Field(), fe.Value())
	case "nefield":
		return fmt.Sprintf("%s must differ from %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

// Job converts the profile into a split job.
func (p Profile) Job() (patch.Job, error) {
	enc, err := patch.ParseEncoding(p.Encoding)
	if err != nil {
		return patch.Job{}, err
	}
	return patch.Job{
		Input:        p.Input,
		Marker:       p.Marker,
		Encoding:     enc,
		OursPath:     p.OursOutput,
		ExistingPath: p.ExistingOutput,
	}, nil
}

// Names returns the sorted profile names of set.
func Names(set map[string]Profile) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
