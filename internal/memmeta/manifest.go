package memmeta

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/unicode/norm"

	"hostmeta/internal/meta"
)

// ErrRootMissing indicates a manifest without a root entry.
var ErrRootMissing = errors.New("missing root")

type manifestFile struct {
	Root        string           `toml:"root"`
	HeaderSize  int64            `toml:"header_size"`
	RefSize     int64            `toml:"reference_size"`
	ArrayIfaces []string         `toml:"array_interfaces"`
	RootMethods []manifestMethod `toml:"root_method"`
	Types       []manifestType   `toml:"type"`
}

type manifestType struct {
	Name       string           `toml:"name"`
	Kind       string           `toml:"kind"`
	Super      string           `toml:"super"`
	Interfaces []string         `toml:"interfaces"`
	Flags      []string         `toml:"flags"`
	State      string           `toml:"state"`
	Fields     []manifestField  `toml:"field"`
	Methods    []manifestMethod `toml:"method"`
}

type manifestField struct {
	Name    string   `toml:"name"`
	Type    string   `toml:"type"`
	Flags   []string `toml:"flags"`
	Generic bool     `toml:"generic"`
}

type manifestMethod struct {
	Name       string   `toml:"name"`
	Descriptor string   `toml:"descriptor"`
	Flags      []string `toml:"flags"`
}

// LoadManifest parses a universe manifest file and loads every type.
func LoadManifest(path string) (*Runtime, error) {
	var mf manifestFile
	md, err := toml.DecodeFile(path, &mf)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	r, err := buildManifest(&mf, md)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// ParseManifest is LoadManifest for in-memory text.
func ParseManifest(text string) (*Runtime, error) {
	var mf manifestFile
	md, err := toml.Decode(text, &mf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	return buildManifest(&mf, md)
}

func buildManifest(mf *manifestFile, md toml.MetaData) (*Runtime, error) {
	if !md.IsDefined("root") || strings.TrimSpace(mf.Root) == "" {
		return nil, ErrRootMissing
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown manifest key %q", undecoded[0].String())
	}
	opts := DefaultOptions()
	opts.RootName = normName(mf.Root)
	if mf.HeaderSize > 0 {
		opts.HeaderSize = mf.HeaderSize
	}
	if mf.RefSize > 0 {
		opts.ReferenceSize = mf.RefSize
	}
	if md.IsDefined("array_interfaces") {
		opts.ArrayInterfaces = normNames(mf.ArrayIfaces)
	}
	for _, mm := range mf.RootMethods {
		decl, err := mm.decl()
		if err != nil {
			return nil, fmt.Errorf("root method %s: %w", mm.Name, err)
		}
		opts.RootMethods = append(opts.RootMethods, decl)
	}
	r, err := New(opts)
	if err != nil {
		return nil, err
	}

	decls := make([]ClassDecl, 0, len(mf.Types))
	for _, mt := range mf.Types {
		d, err := mt.decl()
		if err != nil {
			return nil, fmt.Errorf("type %s: %w", mt.Name, err)
		}
		decls = append(decls, d)
	}
	if err := r.DefineAll(decls); err != nil {
		return nil, err
	}
	return r, nil
}

func (mt *manifestType) decl() (ClassDecl, error) {
	kind, err := meta.ParseKind(mt.Kind)
	if err != nil {
		return ClassDecl{}, err
	}
	mods, err := meta.ParseModifiers(mt.Flags)
	if err != nil {
		return ClassDecl{}, err
	}
	state, err := meta.ParseLinkageState(mt.State)
	if err != nil {
		return ClassDecl{}, err
	}
	d := ClassDecl{
		Name:       normName(mt.Name),
		Kind:       kind,
		Super:      normName(mt.Super),
		Interfaces: normNames(mt.Interfaces),
		Modifiers:  mods,
		State:      state,
	}
	for _, mf := range mt.Fields {
		fmods, err := meta.ParseModifiers(mf.Flags)
		if err != nil {
			return ClassDecl{}, fmt.Errorf("field %s: %w", mf.Name, err)
		}
		d.Fields = append(d.Fields, FieldDecl{
			Name:      normName(mf.Name),
			Type:      normName(mf.Type),
			Modifiers: fmods,
			Generic:   mf.Generic,
		})
	}
	for _, mm := range mt.Methods {
		md, err := mm.decl()
		if err != nil {
			return ClassDecl{}, fmt.Errorf("method %s: %w", mm.Name, err)
		}
		d.Methods = append(d.Methods, md)
	}
	return d, nil
}

func (mm *manifestMethod) decl() (MethodDecl, error) {
	mods, err := meta.ParseModifiers(mm.Flags)
	if err != nil {
		return MethodDecl{}, err
	}
	return MethodDecl{
		Name:       normName(mm.Name),
		Descriptor: strings.TrimSpace(mm.Descriptor),
		Modifiers:  mods,
	}, nil
}

// normName trims and NFC-normalizes a name so visually identical
// identifiers map to one type.
func normName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func normNames(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = normName(s)
	}
	return out
}
