/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Command xmlresolve is a reference CLI exercising the resolution
// engine end to end: given a catalog set and a system id, public id,
// or URI, it prints the resolved URI (and, with --fetch, the resource
// body) or reports a miss.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	v1 "github.com/ndw/xmlresolver/api/v1"
	"github.com/ndw/xmlresolver/internal/catalog"
	"github.com/ndw/xmlresolver/internal/config"
	"github.com/ndw/xmlresolver/internal/fetch"
	"github.com/ndw/xmlresolver/internal/logging"
	"github.com/ndw/xmlresolver/internal/resolve"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("xmlresolve", pflag.ContinueOnError)
	flags.SetOutput(stderr)

	var (
		catalogFiles  []string
		propertyFile  string
		systemID      string
		publicID      string
		uri           string
		manifestPath  string
		alwaysResolve bool
		uriForSystem  bool
		doFetch       bool
		verbose       bool
	)
	flags.StringSliceVarP(&catalogFiles, "catalog", "c", nil, "catalog file URI (repeatable)")
	flags.StringVar(&propertyFile, "properties", "", "TOML property file")
	flags.StringVar(&manifestPath, "manifest", "", "YAML catalog-set manifest")
	flags.StringVar(&systemID, "system", "", "system identifier to resolve")
	flags.StringVar(&publicID, "public", "", "public identifier to resolve")
	flags.StringVar(&uri, "uri", "", "URI to resolve")
	flags.BoolVar(&alwaysResolve, "always-resolve", false, "fall back to the literal request URI on a catalog miss")
	flags.BoolVar(&uriForSystem, "uri-for-system", false, "retry a system-id miss as a uri lookup")
	flags.BoolVar(&doFetch, "fetch", false, "open and print the resolved resource, not just its URI")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	if err := flags.Parse(args); err != nil {
		return 2
	}

	logger, sync, err := logging.New(verbose)
	if err != nil {
		fmt.Fprintln(stderr, "logging setup failed:", err)
		return 1
	}
	defer sync()

	var opts []config.Option
	if manifestPath != "" {
		m, err := config.LoadManifest(manifestPath)
		if err != nil {
			fmt.Fprintln(stderr, "loading manifest:", err)
			return 1
		}
		opts = append(opts, m.Options()...)
	}
	if len(catalogFiles) > 0 {
		opts = append(opts, config.WithCatalogFiles(catalogFiles...))
	}
	if alwaysResolve {
		opts = append(opts, config.WithAlwaysResolve(true))
	}

	cfg, err := config.Load(propertyFile, false, opts...)
	if err != nil {
		fmt.Fprintln(stderr, "loading configuration:", err)
		return 1
	}
	if uriForSystem {
		cfg.UriForSystem = true
	}
	if len(cfg.CatalogFiles) == 0 {
		fmt.Fprintln(stderr, "no catalog files specified (use -c or a manifest)")
		return 2
	}

	_, docAccess := cfg.AccessLists()
	fetcher := fetch.New(nil)
	fetcher.AccessList = docAccess
	fetcher.Logger = logger

	mgr := catalog.NewManager(catalog.ManagerConfig{
		PrimaryCatalogs: cfg.CatalogFiles,
		Additions:       cfg.CatalogAdditions,
		UriForSystem:    cfg.UriForSystem,
		Logger:          logger,
		Fetch: func(sourceURI string) (io.ReadCloser, error) {
			resp, err := fetcher.Open(sourceURI)
			if err != nil {
				return nil, err
			}
			return resp.Stream, nil
		},
	})

	resolver := &resolve.Resolver{
		Manager:                     mgr,
		Fetcher:                     fetcher,
		AlwaysResolve:               cfg.AlwaysResolve,
		FixWindowsSystemIdentifiers: cfg.FixWindowsSysIDs,
		Logger:                      logger,
	}

	req := v1.Request{URI: uri, PublicID: publicID, OpenStream: doFetch}
	if systemID != "" {
		req.URI = systemID
		req.Nature = v1.NatureDTD
	}

	if doFetch {
		resp, err := resolver.Resolve(req)
		if err != nil {
			fmt.Fprintln(stderr, "resolve failed:", err)
			return 1
		}
		defer resp.Close()
		fmt.Fprintln(stdout, resp.ResolvedURI)
		if resp.Stream != nil {
			io.Copy(stdout, resp.Stream)
		}
		return 0
	}

	res, err := resolver.Lookup(req)
	if err != nil {
		fmt.Fprintln(stderr, "lookup failed:", err)
		return 1
	}
	if !res.Found {
		fmt.Fprintln(stderr, "not found")
		return 1
	}
	fmt.Fprintln(stdout, res.ResolvedURI)
	return 0
}
