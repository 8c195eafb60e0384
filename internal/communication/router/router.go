// Package router selects the destination a command is delivered through.
package router

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/autopeer-io/commhub/internal/communication/core"
	"github.com/autopeer-io/commhub/internal/communication/core/model"
	"github.com/autopeer-io/commhub/pkg/log"
)

var (
	_ core.OutboundCommandRouter = (*SingleChoice)(nil)
	_ core.OutboundCommandRouter = (*SpecificationMapping)(nil)
)

// SingleChoice sends every command to one destination. With no configured
// id it picks the only destination it was initialized with.
type SingleChoice struct {
	destinationID string
	selected      string
}

func NewSingleChoice(destinationID string) *SingleChoice {
	return &SingleChoice{destinationID: destinationID}
}

func (r *SingleChoice) Name() string { return "single-choice-router" }

func (r *SingleChoice) Initialize(destinations []core.CommandDestination) error {
	ids := idSet(destinations)

	switch {
	case r.destinationID != "":
		if _, ok := ids[r.destinationID]; !ok {
			return fmt.Errorf("%w: destination %q is not configured", core.ErrNoMatchingDestination, r.destinationID)
		}
		r.selected = r.destinationID
	case len(destinations) == 1:
		r.selected = destinations[0].DestinationID()
	case len(destinations) == 0:
		return fmt.Errorf("%w: no destinations configured", core.ErrNoMatchingDestination)
	default:
		return fmt.Errorf("%w: %d destinations configured and none selected", core.ErrNoMatchingDestination, len(destinations))
	}
	return nil
}

func (r *SingleChoice) Start(context.Context) error {
	if r.selected == "" {
		return fmt.Errorf("%w: %s was not initialized", core.ErrNotConfigured, r.Name())
	}
	log.Info("Routing all commands to a single destination", "destination", r.selected)
	return nil
}

func (r *SingleChoice) Stop(context.Context) error { return nil }

func (r *SingleChoice) Route(*model.DeviceCommand, *model.DeviceAssignment) (string, error) {
	return r.route()
}

func (r *SingleChoice) RouteSystem(*model.SystemCommand, *model.DeviceAssignment) (string, error) {
	return r.route()
}

func (r *SingleChoice) route() (string, error) {
	if r.selected == "" {
		return "", core.ErrNoMatchingDestination
	}
	return r.selected, nil
}

// SpecificationMapping routes by the assignment's device specification,
// falling back to an optional default destination.
type SpecificationMapping struct {
	mappings           map[string]string
	defaultDestination string
	initialized        bool
}

// NewSpecificationMapping copies mappings (specification token to destination id).
func NewSpecificationMapping(mappings map[string]string, defaultDestination string) *SpecificationMapping {
	return &SpecificationMapping{mappings: maps.Clone(mappings), defaultDestination: defaultDestination}
}

func (r *SpecificationMapping) Name() string { return "specification-mapping-router" }

// Initialize rejects mappings that point at destinations not in the list.
func (r *SpecificationMapping) Initialize(destinations []core.CommandDestination) error {
	ids := idSet(destinations)

	for _, spec := range slices.Sorted(maps.Keys(r.mappings)) {
		if _, ok := ids[r.mappings[spec]]; !ok {
			return fmt.Errorf("%w: specification %q maps to unknown destination %q", core.ErrNotConfigured, spec, r.mappings[spec])
		}
	}
	if r.defaultDestination != "" {
		if _, ok := ids[r.defaultDestination]; !ok {
			return fmt.Errorf("%w: unknown default destination %q", core.ErrNotConfigured, r.defaultDestination)
		}
	}

	r.initialized = true
	return nil
}

func (r *SpecificationMapping) Start(context.Context) error {
	if !r.initialized {
		return fmt.Errorf("%w: %s was not initialized", core.ErrNotConfigured, r.Name())
	}
	log.Info("Routing commands by device specification", "mappings", len(r.mappings), "default", r.defaultDestination)
	return nil
}

func (r *SpecificationMapping) Stop(context.Context) error { return nil }

func (r *SpecificationMapping) Route(_ *model.DeviceCommand, assignment *model.DeviceAssignment) (string, error) {
	return r.route(assignment)
}

func (r *SpecificationMapping) RouteSystem(_ *model.SystemCommand, assignment *model.DeviceAssignment) (string, error) {
	return r.route(assignment)
}

func (r *SpecificationMapping) route(assignment *model.DeviceAssignment) (string, error) {
	if assignment != nil {
		if id, ok := r.mappings[assignment.SpecificationToken]; ok {
			return id, nil
		}
	}
	if r.defaultDestination != "" {
		return r.defaultDestination, nil
	}

	spec := ""
	if assignment != nil {
		spec = assignment.SpecificationToken
	}
	return "", fmt.Errorf("%w: no mapping for specification %q", core.ErrNoMatchingDestination, spec)
}

func idSet(destinations []core.CommandDestination) map[string]struct{} {
	ids := make(map[string]struct{}, len(destinations))
	for _, d := range destinations {
		ids[d.DestinationID()] = struct{}{}
	}
	return ids
}
