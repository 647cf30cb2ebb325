// Package opt implements the ordered optimization pipeline and the
// hazard-aware scheduling passes: delay-slot filling by safe reordering,
// read-after-write splitting, and accumulator-lifetime hoisting, all built
// on the ir use-def registry and instruction cursors.
package opt

import (
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/vectralab/qcc/config"
	"github.com/vectralab/qcc/ir"
)

// PassFunc mutates a single method in place. Passes run in parallel for
// different methods, so a pass must not touch state outside the method and
// configuration it was given.
type PassFunc func(mod *ir.Module, m *ir.Method, cfg *config.Config) error

// Pass is a whole-method optimization, ordered by an explicit index.
type Pass struct {
	Name  string
	Index int
	Run   PassFunc
}

// Less orders passes by index, name-tiebroken for determinism.
func (p Pass) Less(other Pass) bool {
	if p.Index != other.Index {
		return p.Index < other.Index
	}
	return p.Name < other.Name
}

// Equal compares passes by name and index.
func (p Pass) Equal(other Pass) bool {
	return p.Name == other.Name && p.Index == other.Index
}

// StepFunc handles a single instruction cursor and returns the cursor the
// driver should advance from, allowing a step to consume or produce a
// variable number of instructions.
type StepFunc func(mod *ir.Module, m *ir.Method, it ir.Walker, cfg *config.Config) (ir.Walker, error)

// Step is a per-instruction optimization, ordered by an explicit index.
type Step struct {
	Name  string
	Index int
	Apply StepFunc
}

// Less orders steps by index, name-tiebroken for determinism.
func (s Step) Less(other Step) bool {
	if s.Index != other.Index {
		return s.Index < other.Index
	}
	return s.Name < other.Name
}

// Built-in optimization passes.
var (
	// RunSingleSteps drives all registered single-instruction steps in one
	// sweep over the method, so combined steps cost one traversal.
	RunSingleSteps = Pass{Name: "single-steps", Index: 0, Run: runSingleSteps}

	// CombineLiteralLoads rewrites reloads of an identical literal within a
	// small block window into moves from the earlier target.
	CombineLiteralLoads = Pass{Name: "combine-literal-loads", Index: 1, Run: combineLiteralLoads}

	// CombineRotations collapses stacked constant-offset vector rotations
	// into a single rotation.
	CombineRotations = Pass{Name: "combine-rotations", Index: 2, Run: combineRotations}

	// Eliminate removes instructions whose results are never read and which
	// have no side effects.
	Eliminate = Pass{Name: "eliminate-dead", Index: 3, Run: eliminateDeadInstructions}

	// SpillLocals reports long-living, rarely-written locals as spill
	// candidates for the downstream register allocator.
	SpillLocals = Pass{Name: "spill-locals", Index: 4, Run: analyzeSpillCandidates}

	// CombineVPMSetup drops duplicate identical VPM setup writes.
	CombineVPMSetup = Pass{Name: "combine-vpm-setup", Index: 5, Run: combineVPMSetup}

	// SplitReadAfterWrites inserts wait-register placeholders between a
	// write and a read that pipeline timing forbids from being adjacent.
	// Required: the reordering pass absorbs the placeholders it plants.
	SplitReadAfterWrites = Pass{Name: "split-read-after-writes", Index: 6, Run: splitReadAfterWrites}

	// Reorder fills delay-slot placeholders with safely relocatable
	// instructions. Required.
	Reorder = Pass{Name: "reorder", Index: 7, Run: reorderWithinBasicBlocks}

	// Combine pairs adjacent independent add-pipe and mul-pipe instructions
	// for dual issue.
	Combine = Pass{Name: "combine-pairs", Index: 8, Run: combineInstructionPairs}

	// UnrollWorkGroups wraps the kernel body in a decrement-and-branch loop
	// over the work-group count.
	UnrollWorkGroups = Pass{Name: "unroll-work-groups", Index: 9, Run: unrollWorkGroups}
)

// requiredPasses must be present in every configured selection; the passes
// that run after them depend on the invariants they establish.
var requiredPasses = []string{
	SplitReadAfterWrites.Name,
	Reorder.Name,
}

// AllPasses returns every built-in pass in index order.
func AllPasses() []Pass {
	return []Pass{
		RunSingleSteps,
		CombineLiteralLoads,
		CombineRotations,
		Eliminate,
		SpillLocals,
		CombineVPMSetup,
		SplitReadAfterWrites,
		Reorder,
		Combine,
		UnrollWorkGroups,
	}
}

// DefaultPasses returns the default ordered pass set.
func DefaultPasses() []Pass {
	return AllPasses()
}

// PassByName looks a built-in pass up by name.
func PassByName(name string) (Pass, bool) {
	for _, p := range AllPasses() {
		if p.Name == name {
			return p, true
		}
	}
	return Pass{}, false
}

// Optimizer runs a configured, ordered set of passes over every method of
// a module. Methods are optimized concurrently; all pass state is confined
// to one method, so no locking is needed.
type Optimizer struct {
	cfg    *config.Config
	passes []Pass
}

// New creates an Optimizer for the given configuration. With no explicit
// passes, the configuration's named selection is resolved, defaulting to
// the built-in default set. A selection that omits a required pass or
// names an unknown pass is a configuration error, surfaced here before any
// compilation proceeds.
func New(cfg *config.Config, passes ...Pass) (*Optimizer, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	selected := passes
	if len(selected) == 0 {
		if len(cfg.Passes) == 0 {
			selected = DefaultPasses()
		} else {
			for _, name := range cfg.Passes {
				p, ok := PassByName(name)
				if !ok {
					return nil, fmt.Errorf("unknown optimization pass %q", name)
				}
				selected = append(selected, p)
			}
		}
	}

	for _, required := range requiredPasses {
		found := false
		for _, p := range selected {
			if p.Name == required {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("required optimization pass %q is not configured", required)
		}
	}

	ordered := append([]Pass(nil), selected...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Less(ordered[j]) })

	return &Optimizer{cfg: cfg, passes: ordered}, nil
}

// Passes returns the effective ordered pass set.
func (o *Optimizer) Passes() []Pass {
	return append([]Pass(nil), o.passes...)
}

// Optimize runs the configured passes, strictly in order, over each method
// of the module. Different methods are optimized in parallel on a bounded
// worker pool. The first invariant violation aborts the whole run.
func (o *Optimizer) Optimize(mod *ir.Module) error {
	var group errgroup.Group
	group.SetLimit(o.cfg.Workers())

	for _, method := range mod.Methods {
		method := method
		group.Go(func() error {
			return o.optimizeMethod(mod, method)
		})
	}

	return group.Wait()
}

func (o *Optimizer) optimizeMethod(mod *ir.Module, m *ir.Method) error {
	log := o.cfg.Logger()
	for _, p := range o.passes {
		log.Debug("running optimization pass", "pass", p.Name, "method", m.Name)
		if err := p.Run(mod, m, o.cfg); err != nil {
			return fmt.Errorf("pass %s on method %s: %w", p.Name, m.Name, err)
		}
	}
	return nil
}
