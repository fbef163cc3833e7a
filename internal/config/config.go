// Package config holds the command-line configuration shared by all commands.
package config

import (
	"errors"
	"fmt"

	"github.com/idelchi/gogen/pkg/validator"
)

// DefaultKDFCost is log2 of the scrypt N parameter every artifact is produced with.
const DefaultKDFCost = 20

type Config struct {
	// Common flags
	Show     bool   `json:"show"`
	Quiet    bool   `json:"quiet"`
	Stats    bool   `json:"stats"`
	LogLevel string `json:"log-level" label:"--log-level" mapstructure:"log-level" validate:"oneof=debug info warn error"`

	// Password sources, the prompt is used when both are empty
	Password     string `json:"-"                       label:"--password"`
	PasswordFile string `json:"password-file,omitempty" label:"--password-file" mapstructure:"password-file" validate:"omitempty,exclusive=Password,file"` //nolint:lll

	// Output selection
	Output string `json:"output,omitempty" label:"--output" validate:"omitempty,dir"`
	Force  bool   `json:"force"`
	Delete bool   `json:"delete"`

	// Directory archiving
	Exclude     []string `json:"exclude,omitempty"`
	ExcludeFrom string   `json:"exclude-from,omitempty" label:"--exclude-from" mapstructure:"exclude-from" validate:"omitempty,file"`

	// Verification
	Parallel int `json:"parallel" label:"--parallel" validate:"omitempty,min=1"`

	// KDFCost must match the cost the artifacts were produced with.
	KDFCost int `json:"kdf-cost" label:"--kdf-cost" mapstructure:"kdf-cost" validate:"min=10,max=30"`

	// Command-specific state
	Decrypt bool `json:"decrypt" mapstructure:"-"`

	// Positional arguments
	Files []string `json:"files" label:"paths" mapstructure:"-" validate:"min=1"`
}

// Display returns the value of the Show field.
func (c Config) Display() bool {
	return c.Show
}

// Validate validates the configuration against the struct tags.
func (c Config) Validate(config any) error {
	validator := validator.NewValidator()

	if err := registerExclusive(validator); err != nil {
		return fmt.Errorf("registering exclusive: %w", err)
	}

	if errs := validator.Validate(config); len(errs) > 0 {
		return fmt.Errorf("validating configuration: %w", errors.Join(errs...))
	}

	return nil
}
