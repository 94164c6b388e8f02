// Package config assembles the resolver's runtime configuration from
// layered sources: built-in defaults, an optional TOML property file,
// process environment variables, and explicit Option funcs supplied by
// the embedding application.
package config

import (
	"os"
	"sort"
	"strconv"

	"github.com/BurntSushi/toml"
	"golang.org/x/exp/maps"

	"github.com/ndw/xmlresolver/internal/uriutil"
)

// Config is the immutable, fully merged configuration consumed by the
// catalog manager and resolver.
type Config struct {
	CatalogFiles     []string
	CatalogAdditions []string

	Prefer              string // "system" or "public"
	AllowCatalogPI      bool
	PreferPropertyFile  bool
	UriForSystem        bool
	AlwaysResolve       bool
	ThrowUriExceptions  bool
	FixWindowsSysIDs    bool
	ClasspathResources  bool
	AccessExternalEntity []string
	AccessExternalDoc    []string
}

// defaults returns the built-in baseline every Load starts from.
func defaults() Config {
	return Config{
		Prefer:              "public",
		AllowCatalogPI:      true,
		UriForSystem:        false,
		AlwaysResolve:       false,
		ThrowUriExceptions:  false,
		FixWindowsSysIDs:    false,
		ClasspathResources:  true,
		AccessExternalEntity: []string{"all"},
		AccessExternalDoc:    []string{"all"},
	}
}

// properties is the shape of the TOML property file, field names
// matching the xml.catalog.* keys the spec's configuration table
// names, translated to TOML's snake_case convention.
type properties struct {
	CatalogFiles        []string `toml:"catalog_files"`
	CatalogAdditions    []string `toml:"catalog_additions"`
	Prefer              string   `toml:"prefer"`
	AllowCatalogPI      *bool    `toml:"allow_catalog_pi"`
	UriForSystem        *bool    `toml:"uri_for_system"`
	AlwaysResolve       *bool    `toml:"always_resolve"`
	ThrowUriExceptions  *bool    `toml:"throw_uri_exceptions"`
	FixWindowsSysIDs    *bool    `toml:"fix_windows_system_identifiers"`
	ClasspathResources  *bool    `toml:"classpath_resources"`
	AccessExternalEntity []string `toml:"access_external_entity"`
	AccessExternalDoc    []string `toml:"access_external_document"`
}

func (p properties) apply(c *Config) {
	if len(p.CatalogFiles) > 0 {
		c.CatalogFiles = p.CatalogFiles
	}
	if len(p.CatalogAdditions) > 0 {
		c.CatalogAdditions = p.CatalogAdditions
	}
	if p.Prefer != "" {
		c.Prefer = p.Prefer
	}
	applyBoolPtr(p.AllowCatalogPI, &c.AllowCatalogPI)
	applyBoolPtr(p.UriForSystem, &c.UriForSystem)
	applyBoolPtr(p.AlwaysResolve, &c.AlwaysResolve)
	applyBoolPtr(p.ThrowUriExceptions, &c.ThrowUriExceptions)
	applyBoolPtr(p.FixWindowsSysIDs, &c.FixWindowsSysIDs)
	applyBoolPtr(p.ClasspathResources, &c.ClasspathResources)
	if len(p.AccessExternalEntity) > 0 {
		c.AccessExternalEntity = p.AccessExternalEntity
	}
	if len(p.AccessExternalDoc) > 0 {
		c.AccessExternalDoc = p.AccessExternalDoc
	}
}

func applyBoolPtr(src *bool, dst *bool) {
	if src != nil {
		*dst = *src
	}
}

// envOverrides reads the XMLRESOLVER_* environment variables,
// returning only the keys actually set so callers can tell "unset"
// from "set to the zero value". applyEnv walks the keys (collected
// with golang.org/x/exp/maps) in sorted order.
func envOverrides() map[string]string {
	names := []string{
		"XMLRESOLVER_PREFER",
		"XMLRESOLVER_URI_FOR_SYSTEM",
		"XMLRESOLVER_ALWAYS_RESOLVE",
		"XMLRESOLVER_THROW_URI_EXCEPTIONS",
		"XMLRESOLVER_FIX_WINDOWS_SYSTEM_IDENTIFIERS",
		"XMLRESOLVER_CLASSPATH_RESOURCES",
	}
	out := make(map[string]string)
	for _, n := range names {
		if v, ok := os.LookupEnv(n); ok {
			out[n] = v
		}
	}
	return out
}

func (c *Config) applyEnv(env map[string]string) {
	keys := maps.Keys(env)
	sort.Strings(keys)
	for _, k := range keys {
		v := env[k]
		switch k {
		case "XMLRESOLVER_PREFER":
			c.Prefer = v
		case "XMLRESOLVER_URI_FOR_SYSTEM":
			c.UriForSystem = parseBool(v, c.UriForSystem)
		case "XMLRESOLVER_ALWAYS_RESOLVE":
			c.AlwaysResolve = parseBool(v, c.AlwaysResolve)
		case "XMLRESOLVER_THROW_URI_EXCEPTIONS":
			c.ThrowUriExceptions = parseBool(v, c.ThrowUriExceptions)
		case "XMLRESOLVER_FIX_WINDOWS_SYSTEM_IDENTIFIERS":
			c.FixWindowsSysIDs = parseBool(v, c.FixWindowsSysIDs)
		case "XMLRESOLVER_CLASSPATH_RESOURCES":
			c.ClasspathResources = parseBool(v, c.ClasspathResources)
		}
	}
}

func parseBool(s string, fallback bool) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fallback
	}
	return b
}

// Option mutates a Config being built by Load; Options apply last and
// always win over the property file and environment.
type Option func(*Config)

// WithCatalogFiles overrides the root catalog file list.
func WithCatalogFiles(files ...string) Option {
	return func(c *Config) { c.CatalogFiles = files }
}

// WithCatalogAdditions appends extra catalogs after CatalogFiles.
func WithCatalogAdditions(files ...string) Option {
	return func(c *Config) { c.CatalogAdditions = files }
}

// WithPrefer sets the default system/public preference.
func WithPrefer(prefer string) Option {
	return func(c *Config) { c.Prefer = prefer }
}

// WithAlwaysResolve toggles the always_resolve fallback.
func WithAlwaysResolve(v bool) Option {
	return func(c *Config) { c.AlwaysResolve = v }
}

// Load merges defaults, an optional TOML property file, environment
// variables, and opts, in precedence order low to high unless
// preferPropertyFile is set, in which case the property file is
// applied after the environment instead of before it.
func Load(propertyFilePath string, preferPropertyFile bool, opts ...Option) (Config, error) {
	c := defaults()
	c.PreferPropertyFile = preferPropertyFile

	var props properties
	haveProps := false
	if propertyFilePath != "" {
		if _, err := toml.DecodeFile(propertyFilePath, &props); err != nil {
			if !os.IsNotExist(err) {
				return Config{}, err
			}
		} else {
			haveProps = true
		}
	}

	env := envOverrides()

	if preferPropertyFile {
		c.applyEnv(env)
		if haveProps {
			props.apply(&c)
		}
	} else {
		if haveProps {
			props.apply(&c)
		}
		c.applyEnv(env)
	}

	for _, opt := range opts {
		opt(&c)
	}

	return c, nil
}

// AccessLists builds the uriutil.AccessList pair this Config implies
// for entity and document fetches.
func (c Config) AccessLists() (entity, document uriutil.AccessList) {
	return buildAccessList(c.AccessExternalEntity), buildAccessList(c.AccessExternalDoc)
}

func buildAccessList(schemes []string) uriutil.AccessList {
	for _, s := range schemes {
		if s == "all" {
			return uriutil.AllowAll
		}
	}
	return uriutil.NewAccessList(schemes, false)
}
