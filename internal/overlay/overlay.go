// Package overlay implements the base+patch workflow overlay document
// described in spec.md §6 ("Overlay/patch document"): a set of base
// workflow files merged into one, then patched transition-by-transition
// by label, with global variable seeding and optional workflow renaming.
package overlay

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roasbeef/actorflow/internal/workflow"
)

// Document is the parsed overlay/patch document (spec.md §6).
type Document struct {
	// Bases lists base workflow files, or directories of them, to merge,
	// relative to the directory the overlay document itself was loaded
	// from.
	Bases []string `yaml:"bases"`

	// Patches lists patch files, applied in order after all bases are
	// merged, relative to the overlay document's directory.
	Patches []string `yaml:"patches"`

	// Vars holds global variable substitutions seeded into the
	// interpreter's variable scope alongside any -P overrides.
	Vars map[string]string `yaml:"vars"`

	// NamePrefix/NameSuffix rename the merged workflow.
	NamePrefix string `yaml:"namePrefix"`
	NameSuffix string `yaml:"nameSuffix"`
}

// patchTransition mirrors workflow.Transition with one addition: Anchor,
// required when Label does not already exist in the base being patched
// (see ErrOrphanTransition).
type patchTransition struct {
	Label   string              `yaml:"label"`
	Anchor  string              `yaml:"anchor"`
	States  workflow.States     `yaml:"states"`
	Actions []workflow.Action   `yaml:"actions"`
}

// patchFile is the on-disk shape of one entry in Document.Patches.
type patchFile struct {
	Transitions []patchTransition `yaml:"transitions"`
}

// ErrOrphanTransition is returned when a patch introduces a transition
// label absent from the base and not anchored to an existing one (spec.md
// §6, §7 "Orphan overlay vertex").
var ErrOrphanTransition = fmt.Errorf("orphan transition: patch references " +
	"a label absent from the base without an anchor")

// LoadDocument reads and parses the overlay document at path.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading overlay document: %w", err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing overlay document: %w", err)
	}

	return &doc, nil
}

// Result is the product of applying an overlay: the merged and patched
// workflow, plus the variables the document wants seeded into the
// interpreter's scope.
type Result struct {
	Workflow *workflow.Workflow
	Vars     map[string]string
}

// Apply loads every base and patch file referenced by doc (resolved
// relative to overlayDir), merges the bases in listed order, applies every
// patch in listed order, and renames the result per NamePrefix/NameSuffix.
//
// Applying a Document with no Patches, no Vars, and no renaming yields a
// Workflow deep-equal to the concatenation of its bases unchanged (spec.md
// §8 "Overlay round-trip").
func Apply(doc *Document, overlayDir string) (*Result, error) {
	merged, err := loadBases(doc.Bases, overlayDir)
	if err != nil {
		return nil, err
	}

	for _, patchPath := range doc.Patches {
		full := filepath.Join(overlayDir, patchPath)

		data, err := os.ReadFile(full)
		if err != nil {
			return nil, fmt.Errorf("reading patch %s: %w", patchPath, err)
		}

		var pf patchFile
		if err := yaml.Unmarshal(data, &pf); err != nil {
			return nil, fmt.Errorf("parsing patch %s: %w", patchPath, err)
		}

		if err := applyPatch(merged, pf); err != nil {
			return nil, fmt.Errorf("applying patch %s: %w", patchPath, err)
		}
	}

	merged.Name = doc.NamePrefix + merged.Name + doc.NameSuffix

	if err := merged.Validate(); err != nil {
		return nil, err
	}

	return &Result{Workflow: merged, Vars: doc.Vars}, nil
}

// loadBases parses every base workflow file (each entry in bases may be a
// single file or a directory, in which case every *.yaml/*.yml/*.json file
// in it is loaded in lexical order) and concatenates their transitions in
// order into a single Workflow. The merged Workflow takes its name from
// the first base loaded.
func loadBases(bases []string, overlayDir string) (*workflow.Workflow, error) {
	merged := &workflow.Workflow{InitialState: workflow.DefaultInitialState}

	for _, basePath := range bases {
		full := filepath.Join(overlayDir, basePath)

		files, err := collectWorkflowFiles(full)
		if err != nil {
			return nil, err
		}

		for _, f := range files {
			data, err := os.ReadFile(f)
			if err != nil {
				return nil, fmt.Errorf("reading base %s: %w", f, err)
			}

			wf, err := workflow.Parse(data)
			if err != nil {
				return nil, fmt.Errorf("parsing base %s: %w", f, err)
			}

			if merged.Name == "" {
				merged.Name = wf.Name
				merged.InitialState = wf.InitialState
			}

			merged.Transitions = append(merged.Transitions, wf.Transitions...)
		}
	}

	return merged, nil
}

// collectWorkflowFiles returns path itself if it is a regular file, or
// every *.yaml/*.yml/*.json file directly inside it (lexically sorted) if
// it is a directory.
func collectWorkflowFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("resolving base path %s: %w", path, err)
	}

	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("reading base directory %s: %w", path, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		ext := filepath.Ext(e.Name())
		if ext == ".yaml" || ext == ".yml" || ext == ".json" {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}

	return files, nil
}

// applyPatch mutates merged in place: a patch transition whose label
// already exists replaces that transition at its existing position; a
// patch transition with a new label is inserted immediately after its
// Anchor, which must name an already-present label (either from a base or
// an earlier patch transition in the same patch file).
func applyPatch(merged *workflow.Workflow, pf patchFile) error {
	for _, pt := range pf.Transitions {
		newTransition := workflow.Transition{
			Label:   pt.Label,
			States:  pt.States,
			Actions: pt.Actions,
		}

		if idx, ok := merged.ByLabel(pt.Label); ok {
			merged.Transitions[idx] = newTransition
			continue
		}

		anchorIdx, ok := merged.ByLabel(pt.Anchor)
		if pt.Anchor == "" || !ok {
			return ErrOrphanTransition
		}

		merged.Transitions = insertAfter(merged.Transitions, anchorIdx, newTransition)
	}

	return nil
}

// insertAfter returns transitions with t inserted immediately after index
// idx.
func insertAfter(transitions []workflow.Transition, idx int, t workflow.Transition) []workflow.Transition {
	out := make([]workflow.Transition, 0, len(transitions)+1)
	out = append(out, transitions[:idx+1]...)
	out = append(out, t)
	out = append(out, transitions[idx+1:]...)
	return out
}
