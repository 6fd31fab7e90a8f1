// Command stimtable-check replays a photostimulation session document against
// the validation engine and reports the violations and rejections it would
// produce, without touching durable storage.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"ogencore/internal/core"
	"ogencore/pkg/domain"
)

var exitFunc = os.Exit

// sessionDocument is the JSON layout accepted by the command. Entities carry a
// symbolic "ref" label so intervals and sites can reference them before IDs
// are assigned.
type sessionDocument struct {
	LightSources           []lightSourceDoc `json:"light_sources"`
	SpatialLightModulators []modulatorDoc   `json:"spatial_light_modulators"`
	StimulusSites          []siteDoc        `json:"stimulus_sites"`
	TargetSets             []targetSetDoc   `json:"target_sets"`
	StimulusPatterns       []patternDoc     `json:"stimulus_patterns"`
	Intervals              []intervalDoc    `json:"intervals"`
}

type lightSourceDoc struct {
	Ref string `json:"ref"`
	domain.LightSource
}

type modulatorDoc struct {
	Ref string `json:"ref"`
	domain.SpatialLightModulator
}

type siteDoc struct {
	Ref                   string `json:"ref"`
	LightSource           string `json:"light_source,omitempty"`
	SpatialLightModulator string `json:"spatial_light_modulator,omitempty"`
	domain.StimulusSite
}

type targetSetDoc struct {
	Ref string `json:"ref"`
	domain.TargetSet
}

type patternDoc struct {
	Ref string `json:"ref"`
	domain.StimulusPattern
}

type intervalDoc struct {
	Targets         string `json:"targets"`
	StimulusPattern string `json:"stimulus_pattern"`
	StimulusSite    string `json:"stimulus_site"`
	domain.IntervalCandidate
}

func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("stimtable-check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var sessionPath string
	fs.StringVar(&sessionPath, "session", "", "path to session JSON document")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if sessionPath == "" {
		fmt.Fprintln(stderr, "usage: stimtable-check -session <file>")
		return 2
	}
	if err := run(sessionPath, stdout); err != nil {
		fmt.Fprintf(stderr, "Session validation failed: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, "Session validation passed.")
	return 0
}

func run(path string, stdout io.Writer) error {
	clean, err := validatePath(path)
	if err != nil {
		return err
	}
	payload, err := os.ReadFile(clean)
	if err != nil {
		return err
	}
	var doc sessionDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("decode session: %w", err)
	}

	ctx := context.Background()
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine())
	refs, err := registerEntities(ctx, svc, doc)
	if err != nil {
		return err
	}

	var warnings []domain.Violation
	for i, interval := range doc.Intervals {
		candidate := interval.IntervalCandidate
		if candidate.TargetsID, err = refs.resolve("target set", interval.Targets); err != nil {
			return fmt.Errorf("interval %d: %w", i, err)
		}
		if candidate.StimulusPatternID, err = refs.resolve("pattern", interval.StimulusPattern); err != nil {
			return fmt.Errorf("interval %d: %w", i, err)
		}
		if candidate.StimulusSiteID, err = refs.resolve("site", interval.StimulusSite); err != nil {
			return fmt.Errorf("interval %d: %w", i, err)
		}
		_, res, err := svc.AppendStimulationInterval(ctx, candidate)
		if err != nil {
			return fmt.Errorf("interval %d: %w", i, err)
		}
		warnings = append(warnings, res.Violations...)
	}

	fmt.Fprintf(stdout, "Appended %d interval(s) across %d target set(s).\n",
		len(doc.Intervals), len(doc.TargetSets))
	for _, v := range warnings {
		fmt.Fprintf(stdout, "warning [%s]: %s\n", v.Rule, v.Message)
	}
	return nil
}

// refTable maps symbolic document refs to assigned entity IDs, per kind.
type refTable struct {
	ids map[string]string
}

func (r refTable) add(kind, ref, id string) {
	r.ids[kind+"/"+ref] = id
}

func (r refTable) resolve(kind, ref string) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("missing %s reference", kind)
	}
	id, ok := r.ids[kind+"/"+ref]
	if !ok {
		return "", fmt.Errorf("unknown %s reference %q", kind, ref)
	}
	return id, nil
}

func registerEntities(ctx context.Context, svc *core.Service, doc sessionDocument) (refTable, error) {
	refs := refTable{ids: make(map[string]string)}

	for _, source := range doc.LightSources {
		created, _, err := svc.CreateLightSource(ctx, source.LightSource)
		if err != nil {
			return refs, fmt.Errorf("light source %q: %w", source.Ref, err)
		}
		refs.add("light source", source.Ref, created.ID)
	}
	for _, modulator := range doc.SpatialLightModulators {
		created, _, err := svc.CreateSpatialLightModulator(ctx, modulator.SpatialLightModulator)
		if err != nil {
			return refs, fmt.Errorf("modulator %q: %w", modulator.Ref, err)
		}
		refs.add("modulator", modulator.Ref, created.ID)
	}
	for _, site := range doc.StimulusSites {
		created, _, err := svc.CreateStimulusSite(ctx, site.StimulusSite)
		if err != nil {
			return refs, fmt.Errorf("site %q: %w", site.Ref, err)
		}
		refs.add("site", site.Ref, created.ID)
		if site.LightSource != "" {
			id, err := refs.resolve("light source", site.LightSource)
			if err != nil {
				return refs, fmt.Errorf("site %q: %w", site.Ref, err)
			}
			if _, _, err := svc.AttachLightSource(ctx, created.ID, id); err != nil {
				return refs, fmt.Errorf("site %q: %w", site.Ref, err)
			}
		}
		if site.SpatialLightModulator != "" {
			id, err := refs.resolve("modulator", site.SpatialLightModulator)
			if err != nil {
				return refs, fmt.Errorf("site %q: %w", site.Ref, err)
			}
			if _, _, err := svc.AttachSpatialLightModulator(ctx, created.ID, id); err != nil {
				return refs, fmt.Errorf("site %q: %w", site.Ref, err)
			}
		}
	}
	for _, targets := range doc.TargetSets {
		created, _, err := svc.CreateTargetSet(ctx, targets.TargetSet)
		if err != nil {
			return refs, fmt.Errorf("target set %q: %w", targets.Ref, err)
		}
		refs.add("target set", targets.Ref, created.ID)
	}
	for _, pattern := range doc.StimulusPatterns {
		created, _, err := svc.CreateStimulusPattern(ctx, pattern.StimulusPattern)
		if err != nil {
			return refs, fmt.Errorf("pattern %q: %w", pattern.Ref, err)
		}
		refs.add("pattern", pattern.Ref, created.ID)
	}
	return refs, nil
}

// validatePath rejects absolute and path-traversing session references so the
// command only reads files below the working directory.
func validatePath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", fmt.Errorf("empty path")
	}
	if filepath.IsAbs(p) {
		return "", fmt.Errorf("absolute paths not allowed: %s", p)
	}
	clean := filepath.Clean(p)
	if strings.Contains(clean, "..") {
		return "", fmt.Errorf("path traversal not allowed: %s", p)
	}
	return clean, nil
}
