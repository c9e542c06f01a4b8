package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Load parses mainConfigFile plus every "*.cfg" file in its [Main]
// config_dir, resolves "defaults=" references, and returns the fully
// validated configuration: a first pass gathers every DefaultSettings
// section across all files, a second pass builds each Program section
// (merging in its defaults reference first, if any).
func Load(mainConfigFile string) (*Config, error) {
	if _, err := os.Stat(mainConfigFile); err != nil {
		return nil, fmt.Errorf("config file does not exist: %s", mainConfigFile)
	}

	mainText, err := os.ReadFile(mainConfigFile)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", mainConfigFile, err)
	}
	mainSections, err := parseSections(mainConfigFile, string(mainText))
	if err != nil {
		return nil, err
	}

	var mainSection *parsedSection
	for _, s := range mainSections {
		if s.kind == "main" {
			mainSection = s
			break
		}
	}
	if mainSection == nil {
		return nil, fmt.Errorf("missing [Main] section in %s", mainConfigFile)
	}

	mainConfig, err := buildMainConfig(mainSection)
	if err != nil {
		return nil, err
	}

	allSections := append([]*parsedSection{}, mainSections...)

	if mainConfig.ConfigDir != "" {
		matches, globErr := filepath.Glob(filepath.Join(mainConfig.ConfigDir, "*.cfg"))
		if globErr != nil {
			return nil, fmt.Errorf("scanning %s: %w", mainConfig.ConfigDir, globErr)
		}
		for _, fname := range matches {
			text, readErr := os.ReadFile(fname)
			if readErr != nil {
				return nil, fmt.Errorf("reading %s: %w", fname, readErr)
			}
			secs, parseErr := parseSections(fname, string(text))
			if parseErr != nil {
				return nil, parseErr
			}
			allSections = append(allSections, secs...)
		}
	}

	defaults := map[string]*parsedSection{}
	for _, s := range allSections {
		if s.kind == "other" {
			return nil, fmt.Errorf("%s: unknown section [%s]", s.file, s.name)
		}
		if s.kind != "defaults" {
			continue
		}
		if s.name == "" {
			return nil, fmt.Errorf("%s: DefaultSettings section defined without a name", s.file)
		}
		if _, dup := defaults[s.name]; dup {
			return nil, fmt.Errorf("%s: multiple DefaultSettings sections named %q", s.file, s.name)
		}
		defaults[s.name] = s
	}

	cfg := &Config{
		Main:     mainConfig,
		Programs: map[string]*ProgramConfig{},
	}

	for _, s := range allSections {
		if s.kind != "program" {
			continue
		}
		merged, mergeErr := mergeProgramSection(s, defaults)
		if mergeErr != nil {
			return nil, mergeErr
		}
		prog, buildErr := buildProgramConfig(merged)
		if buildErr != nil {
			return nil, buildErr
		}
		if _, dup := cfg.Programs[prog.Name]; dup {
			return nil, fmt.Errorf("%s: duplicate program name %q", s.file, prog.Name)
		}
		cfg.Programs[prog.Name] = prog
		cfg.Order = append(cfg.Order, prog.Name)
	}

	return cfg, nil
}
