// Package config holds the shell's on-disk configuration: a single
// config.yaml inside a configuration directory.
package config

import (
	_ "embed"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

//go:embed default/config.yaml
var defaultConfigData []byte

const (
	ConfigurationName = "config.yaml"
	AppLogName        = "gush.log"
)

type Configuration struct {
	configFs  afero.Fs
	configDir string

	// HistoryFile is where session history is loaded from and appended to.
	// A leading ~ expands to the home directory; empty disables persistence.
	HistoryFile string `json:"history_file"`

	// HistorySize bounds the in-memory history list; zero means unbounded.
	HistorySize int `json:"history_size" validate:"gte=0"`

	// Prompt is printed before each read.
	Prompt string `json:"prompt" validate:"required"`

	// AppLog enables the JSON-lines event log when true.
	AppLog bool `json:"app_log"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	})

	return validate.Struct(c)
}

func (c *Configuration) fs() afero.Fs {
	if c.configFs == nil {
		return afero.NewBasePathFs(afero.NewOsFs(), c.configDir)
	}
	return c.configFs
}

// OpenAppLog opens the application log in an append only state.
func (c *Configuration) OpenAppLog() (afero.File, error) {
	return c.fs().OpenFile(AppLogName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}

// Default returns the built-in configuration. It panics on an invalid
// embedded default because that can only be a build defect.
func Default() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	out.configDir = "."
	return &out
}
