// Copyright 2023 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/bpowers/oat/oatfile"
)

func (a *app) buildCmd() *cli.Command {
	var manifestPath, outPath string

	return &cli.Command{
		Name:  "build",
		Usage: "Assemble a container from a YAML manifest",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "manifest",
				Aliases:     []string{"m"},
				Usage:       "path to the manifest",
				Destination: &manifestPath,
				Required:    true,
			},
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "path of the container to write",
				Destination: &outPath,
				Required:    true,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			m, err := loadManifest(manifestPath)
			if err != nil {
				return err
			}
			cfg, trampolines, err := m.resolve(filepath.Dir(manifestPath))
			if err != nil {
				return err
			}
			return build(outPath, m, cfg, trampolines, oatfile.WithLogger(a.logger))
		},
	}
}

func build(outPath string, m *manifest, cfg oatfile.Config, trampolines []trampolineCode, opts ...oatfile.Option) (err error) {
	b, err := oatfile.NewBuilder(outPath, cfg, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			b.Abort()
		}
	}()

	for _, tc := range trampolines {
		if err := b.WriteTrampoline(tc.t, tc.code); err != nil {
			return err
		}
	}
	if m.Image != nil {
		if err := b.SetImageLinkage(m.Image.OatChecksum, m.Image.OatDataBegin); err != nil {
			return err
		}
		if err := b.SetImagePatchDelta(m.Image.PatchDelta); err != nil {
			return err
		}
	}
	return b.Finalize()
}

func (a *app) dumpCmd() *cli.Command {
	var asJSON bool

	return &cli.Command{
		Name:      "dump",
		Usage:     "Print a container's header, trampolines, properties and sub-files",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print JSON", Destination: &asJSON},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args, err := fileArgs(cmd, 1, "[--json] FILE")
			if err != nil {
				return err
			}
			f, err := oatfile.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()

			info, err := describe(f)
			if err != nil {
				return err
			}
			if asJSON {
				return info.writeJSON(a.stdout)
			}
			return info.writeText(a.stdout)
		},
	}
}

func (a *app) validateCmd() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Check a container's header, layout, checksum and sub-files",
		ArgsUsage: "FILE",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args, err := fileArgs(cmd, 1, "FILE")
			if err != nil {
				return err
			}
			path := args[0]

			f, err := oatfile.Open(path)
			if err != nil {
				return fmt.Errorf("%s: invalid: %w", path, err)
			}
			defer func() { _ = f.Close() }()

			if !f.Header().VerifyChecksum() {
				return fmt.Errorf("%s: invalid: header checksum %#08x, computed %#08x",
					path, f.Header().Checksum(), f.Header().ComputeHeaderChecksum())
			}
			subFiles, err := f.SubFiles()
			if err != nil {
				return fmt.Errorf("%s: invalid: %w", path, err)
			}

			a.logger.Debug("validated", "path", path, "sub_files", len(subFiles))
			_, err = fmt.Fprintf(a.stdout, "%s: ok\n", path)
			return err
		},
	}
}

func (a *app) relocateCmd() *cli.Command {
	var delta int32

	return &cli.Command{
		Name:      "relocate",
		Usage:     "Adjust a container for a boot image moved by a page-aligned delta",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.Int32Flag{
				Name:        "delta",
				Usage:       "bytes the boot image moved by; accepts 0x prefixes",
				Destination: &delta,
				Required:    true,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args, err := fileArgs(cmd, 1, "--delta N FILE")
			if err != nil {
				return err
			}
			return oatfile.Relocate(args[0], delta, oatfile.WithLogger(a.logger))
		},
	}
}

var errKeyNotFound = errors.New("key not found")

func (a *app) getCmd() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Print the value of one property",
		ArgsUsage: "FILE KEY",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args, err := fileArgs(cmd, 2, "FILE KEY")
			if err != nil {
				return err
			}
			f, err := oatfile.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()

			v, ok := f.Header().StoreValueByKey(args[1])
			if !ok {
				return fmt.Errorf("%w: %q", errKeyNotFound, args[1])
			}
			_, err = fmt.Fprintln(a.stdout, v)
			return err
		},
	}
}
