// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

const (
	// EnvVarEnvironment selects the build environment.
	EnvVarEnvironment = "GLIMMER_ENV"
	// EnvVarLegacyEnvironment is consulted when GLIMMER_ENV is unset.
	EnvVarLegacyEnvironment = "EMBER_ENV"
	// DotEnvFile is loaded from the project root before options are resolved.
	DotEnvFile = ".env"
)

// LoadDotEnv loads projectDir/.env into the process environment. Variables
// already set in the process win. A missing file is not an error.
func LoadDotEnv(projectDir string) error {
	path := filepath.Join(projectDir, DotEnvFile)
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ResolveEnvironment picks the build environment from the flag value, then
// GLIMMER_ENV, then EMBER_ENV, defaulting to development.
func ResolveEnvironment(flagValue string) (Environment, error) {
	return resolveEnvironment(flagValue, os.Getenv)
}

func resolveEnvironment(flagValue string, getenv func(string) string) (Environment, error) {
	env := EnvironmentDevelopment
	switch {
	case flagValue != "":
		env = Environment(flagValue)
	case getenv(EnvVarEnvironment) != "":
		env = Environment(getenv(EnvVarEnvironment))
	case getenv(EnvVarLegacyEnvironment) != "":
		env = Environment(getenv(EnvVarLegacyEnvironment))
	}

	if valid, errs := env.IsValid(); !valid {
		return "", errors.Join(errs...)
	}
	return env, nil
}
