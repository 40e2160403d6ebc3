// Copyright 2023 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bpowers/oat"
	"github.com/bpowers/oat/oatfile"
)

// manifest is the YAML description of a container for the build
// command.  Paths are relative to the manifest's directory.
//
//	isa: arm64
//	features: 0x7
//	properties:           # written in the order given
//	  compiler-filter: speed
//	  debuggable: true
//	sub_files:
//	  - location: /system/framework/core.jar
//	    file: core.dex
//	trampolines:
//	  interpreter-to-interpreter-bridge: {file: bridge.bin}
//	  quick-to-interpreter-bridge: {hex: c0035fd6}
//	image:
//	  oat_checksum: 0x12345678
//	  oat_data_begin: 0x70000000
//	  patch_delta: 0
type manifest struct {
	ISA         string              `yaml:"isa"`
	Features    uint32              `yaml:"features"`
	Properties  properties          `yaml:"properties"`
	SubFiles    []subFileSpec       `yaml:"sub_files"`
	Trampolines map[string]codeSpec `yaml:"trampolines"`
	Image       *imageSpec          `yaml:"image"`
}

type subFileSpec struct {
	Location string `yaml:"location"`
	File     string `yaml:"file"`
}

type codeSpec struct {
	File string `yaml:"file"`
	Hex  string `yaml:"hex"`
}

type imageSpec struct {
	OatChecksum  uint32 `yaml:"oat_checksum"`
	OatDataBegin uint32 `yaml:"oat_data_begin"`
	PatchDelta   int32  `yaml:"patch_delta"`
}

// properties keeps the order of a YAML mapping, which a Go map would
// lose.
type properties []oat.KeyValue

func (p *properties) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: properties must be a mapping", node.Line)
	}
	kvs := make(properties, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if k.Kind != yaml.ScalarNode || v.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: property values must be scalars", k.Line)
		}
		kvs = append(kvs, oat.KeyValue{Key: k.Value, Value: v.Value})
	}
	*p = kvs
	return nil
}

func parseManifest(data []byte) (*manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var m manifest
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("yaml.Decode: %w", err)
	}
	return &m, nil
}

func loadManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("os.ReadFile: %w", err)
	}
	m, err := parseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}

// trampolineCode is one trampoline's resolved code.
type trampolineCode struct {
	t    oat.Trampoline
	code []byte
}

// resolve reads every file the manifest refers to.  Trampolines are
// returned in chain order.
func (m *manifest) resolve(baseDir string) (oatfile.Config, []trampolineCode, error) {
	isa, err := oat.ParseInstructionSet(m.ISA)
	if err != nil {
		return oatfile.Config{}, nil, err
	}
	cfg := oatfile.Config{
		InstructionSet: isa,
		Features:       oat.FeatureBitmap(m.Features),
		Properties:     m.Properties,
	}

	for i, sf := range m.SubFiles {
		if sf.Location == "" {
			return oatfile.Config{}, nil, fmt.Errorf("sub_files[%d]: missing location", i)
		}
		data, err := readRelative(baseDir, sf.File)
		if err != nil {
			return oatfile.Config{}, nil, fmt.Errorf("sub-file %q: %w", sf.Location, err)
		}
		cfg.SubFiles = append(cfg.SubFiles, oatfile.SubFile{Location: sf.Location, Data: data})
	}

	byTrampoline := make(map[oat.Trampoline][]byte, len(m.Trampolines))
	for name, spec := range m.Trampolines {
		t, err := oat.ParseTrampoline(name)
		if err != nil {
			return oatfile.Config{}, nil, err
		}
		code, err := spec.read(baseDir)
		if err != nil {
			return oatfile.Config{}, nil, fmt.Errorf("trampoline %s: %w", name, err)
		}
		byTrampoline[t] = code
	}
	var codes []trampolineCode
	for _, t := range oat.Trampolines() {
		if code, ok := byTrampoline[t]; ok {
			codes = append(codes, trampolineCode{t: t, code: code})
		}
	}

	return cfg, codes, nil
}

func (c codeSpec) read(baseDir string) ([]byte, error) {
	switch {
	case c.File != "" && c.Hex != "":
		return nil, errors.New("only one of file and hex may be given")
	case c.Hex != "":
		code, err := hex.DecodeString(strings.Join(strings.Fields(c.Hex), ""))
		if err != nil {
			return nil, fmt.Errorf("hex: %w", err)
		}
		return code, nil
	case c.File != "":
		return readRelative(baseDir, c.File)
	default:
		return nil, errors.New("one of file and hex is required")
	}
}

func readRelative(baseDir, path string) ([]byte, error) {
	if path == "" {
		return nil, errors.New("missing file")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	return os.ReadFile(path)
}
