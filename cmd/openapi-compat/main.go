// Package main checks a revised swagger.yaml against a baseline for
// changes that would break existing API clients.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

type endpoint struct {
	Responses      map[string]bool
	RequiredParams map[string]bool
}

// apiSurface maps "METHOD path" to the operation's contract.
type apiSurface map[string]endpoint

func main() {
	baseline := flag.String("baseline", "", "baseline swagger.yaml")
	revised := flag.String("revised", "", "revised swagger.yaml")
	flag.Parse()

	if *baseline == "" || *revised == "" {
		fmt.Fprintln(os.Stderr, "usage: openapi-compat -baseline <path> -revised <path>")
		os.Exit(2)
	}

	before, err := loadSurface(*baseline)
	if err != nil {
		fmt.Fprintf(os.Stderr, "baseline: %v\n", err)
		os.Exit(1)
	}
	after, err := loadSurface(*revised)
	if err != nil {
		fmt.Fprintf(os.Stderr, "revised: %v\n", err)
		os.Exit(1)
	}

	breaks := diff(before, after)
	if len(breaks) > 0 {
		fmt.Fprintln(os.Stderr, "breaking changes detected:")
		for _, b := range breaks {
			fmt.Fprintf(os.Stderr, "  %s\n", b)
		}
		os.Exit(1)
	}
	fmt.Println("no breaking changes")
}

func loadSurface(path string) (apiSurface, error) {
	// #nosec G304: path comes from CLI flags in a dev tool
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc struct {
		Paths map[string]map[string]struct {
			Responses  map[string]yaml.Node `yaml:"responses"`
			Parameters []struct {
				Name     string `yaml:"name"`
				In       string `yaml:"in"`
				Required bool   `yaml:"required"`
			} `yaml:"parameters"`
		} `yaml:"paths"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if doc.Paths == nil {
		return nil, fmt.Errorf("%s has no paths section", path)
	}

	surface := make(apiSurface)
	for path, ops := range doc.Paths {
		for method, op := range ops {
			method = strings.ToUpper(strings.TrimSpace(method))
			switch method {
			case "GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS":
			default:
				continue
			}

			ep := endpoint{
				Responses:      make(map[string]bool, len(op.Responses)),
				RequiredParams: make(map[string]bool),
			}
			for code := range op.Responses {
				ep.Responses[strings.TrimSpace(code)] = true
			}
			for _, p := range op.Parameters {
				if p.Required {
					ep.RequiredParams[p.In+":"+p.Name] = true
				}
			}
			surface[method+" "+path] = ep
		}
	}
	return surface, nil
}

func diff(before, after apiSurface) []string {
	var breaks []string

	for key, old := range before {
		cur, ok := after[key]
		if !ok {
			breaks = append(breaks, "removed operation: "+key)
			continue
		}
		for code := range old.Responses {
			if !cur.Responses[code] {
				breaks = append(breaks, fmt.Sprintf("removed response %s from %s", code, key))
			}
		}
		// A required parameter the baseline did not have rejects every
		// existing client call.
		for param := range cur.RequiredParams {
			if !old.RequiredParams[param] {
				breaks = append(breaks, fmt.Sprintf("new required parameter %s on %s", param, key))
			}
		}
	}

	sort.Strings(breaks)
	return breaks
}
