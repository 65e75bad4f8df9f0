package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that fill in CLI flags left unset.
const (
	EnvProfile  = "PATCHSPLIT_PROFILE"
	EnvConfig   = "PATCHSPLIT_CONFIG"
	EnvLogLevel = "PATCHSPLIT_LOG_LEVEL"
)

// Env captures the PATCHSPLIT_* settings after .env loading.
type Env struct {
	Profile    string
	ConfigPath string
	LogLevel   string
}

// LoadEnv loads dir/.env into the process environment and reads the
// PATCHSPLIT_* variables. Variables already set in the environment win.
func LoadEnv(dir string) (Env, error) {
	path := ".env"
	if dir != "" {
		path = filepath.Join(dir, ".env")
	}
	if err := godotenv.Load(path); err != nil {
		// A missing .env file is fine, but other errors should be surfaced.
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Env{}, fmt.Errorf("config: load %s: %w", path, err)
		}
	}
	return Env{
		Profile:    strings.TrimSpace(os.Getenv(EnvProfile)),
		ConfigPath: strings.TrimSpace(os.Getenv(EnvConfig)),
		LogLevel:   strings.TrimSpace(os.Getenv(EnvLogLevel)),
	}, nil
}

// Overrides replace individual profile fields when non-empty.
type Overrides struct {
	Input          string
	Marker         string
	Encoding       string
	OursOutput     string
	ExistingOutput string
}

// Profiles merges the built-in profiles with those of file. File profiles
// replace built-ins of the same name.
func Profiles(file *File) map[string]Profile {
	set := Builtins()
	if file == nil {
		return set
	}
	for _, p := range file.Profiles {
		set[p.Name] = p
	}
	return set
}

// Resolve picks a profile by name, applies overrides and validates the result.
// An empty name falls back to the file's default and then to DefaultProfile.
func Resolve(file *File, name string, o Overrides) (Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" && file != nil {
		name = strings.TrimSpace(file.Default)
	}
	if name == "" {
		name = DefaultProfile
	}

	set := Profiles(file)
	profile, ok := set[name]
	if !ok {
		return Profile{}, fmt.Errorf("config: unknown profile %q (available: %s)", name, strings.Join(Names(set), ", "))
	}

	if o.Input != "" {
		profile.Input = o.Input
	}
	if o.Marker != "" {
		profile.Marker = o.Marker
	}
	if o.Encoding != "" {
		profile.Encoding = o.Encoding
	}
	if o.OursOutput != "" {
		profile.OursOutput = o.OursOutput
	}
	if o.ExistingOutput != "" {
		profile.ExistingOutput = o.ExistingOutput
	}
	if err := profile.Validate(); err != nil {
		return Profile{}, err
	}
	return profile, nil
}
