// Copyright 2023 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-json"

	"github.com/bpowers/oat"
	"github.com/bpowers/oat/oatfile"
)

type containerInfo struct {
	Size               int              `json:"size"`
	Magic              string           `json:"magic"`
	Version            string           `json:"version"`
	Checksum           uint32           `json:"checksum"`
	ChecksumOK         bool             `json:"checksum_ok"`
	InstructionSet     string           `json:"instruction_set"`
	FeaturesBitmap     uint32           `json:"features_bitmap"`
	HeaderSize         int              `json:"header_size"`
	SubFileCount       uint32           `json:"sub_file_count"`
	SubFileTableOffset uint32           `json:"sub_file_table_offset"`
	ExecutableOffset   uint32           `json:"executable_offset"`
	ImagePatchDelta    int32            `json:"image_patch_delta"`
	ImageOatChecksum   uint32           `json:"image_oat_checksum"`
	ImageOatDataBegin  uint32           `json:"image_oat_data_begin"`
	Trampolines        []trampolineInfo `json:"trampolines"`
	Properties         []propertyInfo   `json:"properties"`
	SubFiles           []subFileInfo    `json:"sub_files"`
}

type trampolineInfo struct {
	Name   string `json:"name"`
	Offset uint32 `json:"offset"`
	Size   int    `json:"size"`
}

type propertyInfo struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type subFileInfo struct {
	Location    string `json:"location"`
	Size        int    `json:"size"`
	Fingerprint uint32 `json:"fingerprint"`
}

func describe(f *oatfile.File) (*containerInfo, error) {
	h := f.Header()
	magic, version := h.Magic(), h.Version()
	info := &containerInfo{
		Size:               f.Len(),
		Magic:              strings.TrimRight(string(magic[:]), "\n"),
		Version:            strings.TrimRight(string(version[:]), "\x00"),
		Checksum:           h.Checksum(),
		ChecksumOK:         h.VerifyChecksum(),
		InstructionSet:     h.InstructionSet().String(),
		FeaturesBitmap:     h.InstructionSetFeaturesBitmap(),
		HeaderSize:         h.HeaderSize(),
		SubFileCount:       h.SubFileCount(),
		SubFileTableOffset: h.SubFileTableOffset(),
		ExecutableOffset:   h.ExecutableOffset(),
		ImagePatchDelta:    h.ImagePatchDelta(),
		ImageOatChecksum:   h.ImageFileLocationOatChecksum(),
		ImageOatDataBegin:  h.ImageFileLocationOatDataBegin(),
		Trampolines:        []trampolineInfo{},
		Properties:         []propertyInfo{},
		SubFiles:           []subFileInfo{},
	}
	for _, t := range oat.Trampolines() {
		info.Trampolines = append(info.Trampolines, trampolineInfo{
			Name:   t.String(),
			Offset: h.TrampolineOffset(t),
			Size:   len(f.Trampoline(t)),
		})
	}
	for _, kv := range h.StoreKeyValuePairs() {
		info.Properties = append(info.Properties, propertyInfo{Key: kv.Key, Value: kv.Value})
	}
	subFiles, err := f.SubFiles()
	if err != nil {
		return nil, err
	}
	for _, sf := range subFiles {
		info.SubFiles = append(info.SubFiles, subFileInfo{
			Location:    sf.Location,
			Size:        len(sf.Data),
			Fingerprint: sf.Fingerprint(),
		})
	}
	return info, nil
}

func (info *containerInfo) writeJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}

func (info *containerInfo) writeText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	checksumState := "ok"
	if !info.ChecksumOK {
		checksumState = "MISMATCH"
	}
	fmt.Fprintf(tw, "size:\t%d\n", info.Size)
	fmt.Fprintf(tw, "magic:\t%q\n", info.Magic)
	fmt.Fprintf(tw, "version:\t%s\n", info.Version)
	fmt.Fprintf(tw, "checksum:\t%#08x (%s)\n", info.Checksum, checksumState)
	fmt.Fprintf(tw, "instruction set:\t%s\n", info.InstructionSet)
	fmt.Fprintf(tw, "features bitmap:\t%#x\n", info.FeaturesBitmap)
	fmt.Fprintf(tw, "header size:\t%d\n", info.HeaderSize)
	fmt.Fprintf(tw, "sub-file count:\t%d\n", info.SubFileCount)
	fmt.Fprintf(tw, "sub-file table offset:\t%#x\n", info.SubFileTableOffset)
	fmt.Fprintf(tw, "executable offset:\t%#x\n", info.ExecutableOffset)
	fmt.Fprintf(tw, "image patch delta:\t%d\n", info.ImagePatchDelta)
	fmt.Fprintf(tw, "image oat checksum:\t%#08x\n", info.ImageOatChecksum)
	fmt.Fprintf(tw, "image oat data begin:\t%#x\n", info.ImageOatDataBegin)

	fmt.Fprintf(tw, "\ntrampolines:\n")
	for _, t := range info.Trampolines {
		if t.Offset == 0 {
			fmt.Fprintf(tw, "  %s\t-\n", t.Name)
			continue
		}
		fmt.Fprintf(tw, "  %s\t%#x\t%d bytes\n", t.Name, t.Offset, t.Size)
	}

	fmt.Fprintf(tw, "\nproperties:\n")
	for _, p := range info.Properties {
		fmt.Fprintf(tw, "  %s\t%s\n", p.Key, p.Value)
	}

	fmt.Fprintf(tw, "\nsub-files:\n")
	for _, sf := range info.SubFiles {
		fmt.Fprintf(tw, "  %s\t%d bytes\t%#08x\n", sf.Location, sf.Size, sf.Fingerprint)
	}
	return tw.Flush()
}
