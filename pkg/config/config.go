// Copyright 2025 walteh LLC
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

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/rs/zerolog"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// 🔌 Parser is the interface for config parsers
type Parser interface {
	// 📝 Parse parses the config from bytes
	Parse(ctx context.Context, data []byte) (*Config, error)

	// 🔍 CanParse checks if this parser can handle the given file
	CanParse(filename string) bool
}

var (
	// 🗺️ parsers is a list of available parsers
	parsers []Parser
)

// 📝 Register registers a parser
func Register(p Parser) {
	parsers = append(parsers, p)
}

// 🎯 GetParser returns a parser that can handle the given file
func GetParser(filename string) Parser {
	for _, p := range parsers {
		if p.CanParse(filename) {
			return p
		}
	}
	return nil
}

// 📚 Config is the immutable run configuration handed to the batch runner.
// Nothing here is read live during a run; the value is snapshotted at run
// start.
type Config struct {
	Folder         string   `json:"folder" yaml:"folder" hcl:"folder,optional"`
	Recursive      bool     `json:"recursive" yaml:"recursive" hcl:"recursive,optional"`
	DryRun         bool     `json:"dry_run" yaml:"dry_run" hcl:"dry_run,optional"`
	Backup         bool     `json:"backup" yaml:"backup" hcl:"backup,optional"`
	Glossary       string   `json:"glossary" yaml:"glossary" hcl:"glossary,optional"`
	HistoryDB      string   `json:"history_db" yaml:"history_db" hcl:"history_db,optional"`
	Extensions     []string `json:"extensions,omitempty" yaml:"extensions,omitempty" hcl:"extensions,optional"`
	Skip           []string `json:"skip,omitempty" yaml:"skip,omitempty" hcl:"skip,optional"`
	Workers        int      `json:"workers,omitempty" yaml:"workers,omitempty" hcl:"workers,optional"`
	LegacyEncoding string   `json:"legacy_encoding,omitempty" yaml:"legacy_encoding,omitempty" hcl:"legacy_encoding,optional"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	cfg := &Config{Backup: true}
	cfg.applyDefaults()
	return cfg
}

// 🎯 Load loads the configuration from a file. A missing file at the default
// location is not an error; the defaults apply.
func Load(ctx context.Context, path string) (*Config, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", path).Msg("loading configuration")

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logger.Debug().Str("path", path).Msg("no config file, using defaults")
		return Default(), nil
	}
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	p := GetParser(path)
	if p == nil {
		return nil, errors.Errorf("no parser found for file: %s", path)
	}

	cfg, err := p.Parse(ctx, data)
	if err != nil {
		return nil, errors.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// 🔍 Validate checks the configuration and fills in defaults.
func (cfg *Config) Validate() error {
	cfg.applyDefaults()

	if cfg.Workers < 1 {
		return errors.Errorf("workers must be at least 1")
	}
	for _, ext := range cfg.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return errors.Errorf("extension %q must start with a dot", ext)
		}
	}
	if cfg.Folder != "" {
		cfg.Folder = filepath.Clean(cfg.Folder)
	}
	return nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Glossary == "" {
		cfg.Glossary = "glossary.json"
	}
	if cfg.HistoryDB == "" {
		cfg.HistoryDB = "history.db"
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = []string{".srt"}
	}
	if cfg.Workers == 0 {
		cfg.Workers = 4
	}
	if cfg.LegacyEncoding == "" {
		cfg.LegacyEncoding = "windows-1258"
	}
}

// 📝 String returns a string representation of the config
func (cfg *Config) String() string {
	mode := "apply"
	if cfg.DryRun {
		mode = "dry-run"
	}
	return fmt.Sprintf("%s (%s, recursive=%v, backup=%v)", cfg.Folder, mode, cfg.Recursive, cfg.Backup)
}

// 🔧 YAMLParser implements the Parser interface for YAML files
type YAMLParser struct{}

func init() {
	Register(&YAMLParser{})
}

func (p *YAMLParser) CanParse(filename string) bool {
	return strings.HasSuffix(filename, ".yaml") || strings.HasSuffix(filename, ".yml")
}

func (p *YAMLParser) Parse(ctx context.Context, data []byte) (*Config, error) {
	// Decode over the defaults: a key the file omits keeps its default
	// value, so leaving out `backup:` never switches backups off.
	cfg := Default()
	decoder := yaml.NewDecoder(strings.NewReader(string(data)))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, errors.Errorf("parsing YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// 🔧 HCLParser implements the Parser interface for HCL files
type HCLParser struct{}

func init() {
	Register(&HCLParser{})
}

func (p *HCLParser) CanParse(filename string) bool {
	return strings.HasSuffix(filename, ".hcl")
}

func (p *HCLParser) Parse(ctx context.Context, data []byte) (*Config, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(data, "config.hcl")
	if diags.HasErrors() {
		return nil, errors.Errorf("parsing HCL: %s", diags.Error())
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{},
	}

	// gohcl skips absent optional attributes, so decoding over the
	// defaults keeps them for keys the file omits.
	cfg := Default()
	diags = gohcl.DecodeBody(hclFile.Body, evalCtx, cfg)
	if diags.HasErrors() {
		return nil, errors.Errorf("decoding HCL: %s", diags.Error())
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}

	return cfg, nil
}
