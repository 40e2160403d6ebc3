// Copyright 2023 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/bpowers/oat"
)

func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err = newApp(&out, &errOut).Run(context.Background(), append([]string{"oattool"}, args...))
	return out.String(), errOut.String(), err
}

func buildFromTestManifest(t *testing.T) string {
	t.Helper()
	manifestPath := writeTestManifest(t)
	out := filepath.Join(filepath.Dir(manifestPath), "boot.oat")
	_, _, err := run(t, "build", "--manifest", manifestPath, "--out", out)
	require.NoError(t, err)
	return out
}

func TestBuildAndGet(t *testing.T) {
	path := buildFromTestManifest(t)

	stdout, _, err := run(t, "get", path, oat.CompilerFilterKey)
	require.NoError(t, err)
	require.Equal(t, "speed\n", stdout)

	_, _, err = run(t, "get", path, oat.BootClassPathKey)
	require.ErrorIs(t, err, errKeyNotFound)

	_, _, err = run(t, "get", path)
	require.Error(t, err)
}

func TestDumpJSON(t *testing.T) {
	path := buildFromTestManifest(t)

	stdout, _, err := run(t, "dump", "--json", path)
	require.NoError(t, err)

	var info containerInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	require.Equal(t, "oat", info.Magic)
	require.Equal(t, "138", info.Version)
	require.True(t, info.ChecksumOK)
	require.Equal(t, "arm64", info.InstructionSet)
	require.Equal(t, uint32(7), info.FeaturesBitmap)
	require.Equal(t, uint32(1), info.SubFileCount)
	require.Equal(t, uint32(oat.PageSize), info.ExecutableOffset)
	require.Equal(t, int32(-oat.PageSize), info.ImagePatchDelta)
	require.Equal(t, uint32(0x12345678), info.ImageOatChecksum)
	require.Equal(t, uint32(0x70000000), info.ImageOatDataBegin)

	require.Len(t, info.Trampolines, oat.NumTrampolines)
	require.Equal(t, uint32(oat.PageSize), info.Trampolines[oat.InterpreterToInterpreterBridge].Offset)
	require.Equal(t, 16, info.Trampolines[oat.InterpreterToInterpreterBridge].Size)
	require.Equal(t, uint32(0), info.Trampolines[oat.JniDlsymLookup].Offset)
	require.Equal(t, uint32(oat.PageSize+16), info.Trampolines[oat.QuickToInterpreterBridge].Offset)

	require.Equal(t, []propertyInfo{
		{Key: "pic", Value: "true"},
		{Key: "compiler-filter", Value: "speed"},
		{Key: "debuggable", Value: "false"},
		{Key: "classpath", Value: "/data/app/base.apk"},
	}, info.Properties)
	require.Len(t, info.SubFiles, 1)
	require.Equal(t, "/data/app/base.apk", info.SubFiles[0].Location)
	require.Equal(t, len("dex\n035\x00classes"), info.SubFiles[0].Size)
}

func TestDumpText(t *testing.T) {
	path := buildFromTestManifest(t)

	stdout, _, err := run(t, "dump", path)
	require.NoError(t, err)
	require.Contains(t, stdout, "instruction set:")
	require.Contains(t, stdout, "arm64")
	require.Contains(t, stdout, "quick-to-interpreter-bridge")
	require.Contains(t, stdout, "compiler-filter")
	require.Contains(t, stdout, "/data/app/base.apk")
	require.NotContains(t, stdout, "MISMATCH")
}

func TestValidate(t *testing.T) {
	path := buildFromTestManifest(t)

	stdout, _, err := run(t, "validate", path)
	require.NoError(t, err)
	require.Equal(t, path+": ok\n", stdout)

	// a stale checksum is reported
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[64] ^= 0x01 // image oat checksum
	stale := filepath.Join(t.TempDir(), "stale.oat")
	require.NoError(t, os.WriteFile(stale, data, 0644))
	_, _, err = run(t, "validate", stale)
	require.Error(t, err)
	require.Contains(t, err.Error(), "header checksum")

	// as is a bad magic
	data[0] = 'X'
	require.NoError(t, os.WriteFile(stale, data, 0644))
	_, _, err = run(t, "validate", stale)
	require.ErrorIs(t, err, oat.ErrInvalidMagic)
}

func TestRelocate(t *testing.T) {
	path := buildFromTestManifest(t)

	_, _, err := run(t, "relocate", "--delta", "0x2000", path)
	require.NoError(t, err)

	stdout, _, err := run(t, "dump", "--json", path)
	require.NoError(t, err)
	var info containerInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	require.Equal(t, int32(oat.PageSize), info.ImagePatchDelta)
	require.Equal(t, uint32(0x70002000), info.ImageOatDataBegin)
	require.True(t, info.ChecksumOK)

	_, _, err = run(t, "relocate", "--delta", "100", path)
	require.Error(t, err)
}

func TestLogging(t *testing.T) {
	manifestPath := writeTestManifest(t)
	out := filepath.Join(filepath.Dir(manifestPath), "boot.oat")

	_, stderr, err := run(t, "--log-level", "debug", "--log-json", "build", "--manifest", manifestPath, "--out", out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	require.NotEmpty(t, lines)
	for _, line := range lines {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec), line)
		require.Contains(t, rec, "msg")
	}
	require.Contains(t, stderr, "built oat file")

	_, _, err = run(t, "--log-level", "chatty", "validate", out)
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "WARN", false)
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "msg=shown")
}
