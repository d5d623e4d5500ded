// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cif

import (
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*
var schemaFiles embed.FS

func loadSchemaFile(s string) (io.ReadCloser, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	return schemaFiles.Open(u.Host + u.Path)
}

func init() {
	// net/url lower-cases the scheme before jsonschema looks up its loader.
	jsonschema.Loaders["embedfs"] = loadSchemaFile
}

// ManifestCategory is one category entry of a registration Manifest.
type ManifestCategory struct {
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
}

// Manifest is a declarative, data-driven alternative to calling
// RegisterCategory/RegisterKeyword in code: a caller that only needs
// to know which categories and keywords to watch for (a dump tool, a
// configuration-driven extractor) can describe them as JSON instead.
type Manifest struct {
	Categories []ManifestCategory `json:"categories"`
}

// LoadManifest decodes and validates r against the manifest schema
// before unmarshaling it, so a malformed manifest is rejected with a
// schema validation error rather than a confusing field-by-field one.
func LoadManifest(r io.Reader) (*Manifest, error) {
	schema, err := jsonschema.Compile("embedFS://schemas/manifest.schema.json")
	if err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("cif: manifest is not valid JSON: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return nil, fmt.Errorf("cif: manifest failed validation: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// RegisterManifest registers every category and keyword named in m
// against r, wiring the same data and finalize callbacks to each one
// (a caller distinguishes categories from within the callback via
// cat.Name). It returns the registered categories in manifest order.
func (r *Reader) RegisterManifest(m *Manifest, data RowFunc, finalize FinalizeFunc) []*Category {
	cats := make([]*Category, 0, len(m.Categories))
	for _, mc := range m.Categories {
		cat := r.RegisterCategory(mc.Name, data, finalize, nil, nil)
		for _, kw := range mc.Keywords {
			cat.RegisterKeyword(kw)
		}
		cats = append(cats, cat)
	}
	return cats
}
