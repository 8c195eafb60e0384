// Package store provides an in-memory repository for devices, command
// events and batch operations.
package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/autopeer-io/commhub/internal/communication/core"
	"github.com/autopeer-io/commhub/internal/communication/core/model"
)

var (
	_ core.DeviceRepository = (*Memory)(nil)
	_ core.EventRepository  = (*Memory)(nil)
	_ core.BatchRepository  = (*Memory)(nil)
)

// Memory keeps everything in maps guarded by a single RWMutex. Values are
// copied on the way in and on the way out so callers never share state.
type Memory struct {
	mu sync.RWMutex

	devices     map[string]*model.Device
	assignments map[string]*model.DeviceAssignment
	commands    map[string]*model.DeviceCommand
	invocations map[string]*model.CommandInvocation
	responses   map[string][]*model.CommandResponse
	batches     map[string]*model.BatchOperation
	elements    map[string][]*model.BatchElement

	now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		devices:     make(map[string]*model.Device),
		assignments: make(map[string]*model.DeviceAssignment),
		commands:    make(map[string]*model.DeviceCommand),
		invocations: make(map[string]*model.CommandInvocation),
		responses:   make(map[string][]*model.CommandResponse),
		batches:     make(map[string]*model.BatchOperation),
		elements:    make(map[string][]*model.BatchElement),
		now:         time.Now,
	}
}

func (m *Memory) GetDevice(_ context.Context, hardwareID string) (*model.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.devices[hardwareID]
	if !ok {
		return nil, fmt.Errorf("device %q: %w", hardwareID, core.ErrNotFound)
	}
	return cloneDevice(d), nil
}

func (m *Memory) CreateDevice(_ context.Context, device *model.Device) error {
	if device.HardwareID == "" {
		return fmt.Errorf("%w: hardware id", core.ErrMissingRequiredParameter)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createDeviceLocked(device)
}

func (m *Memory) createDeviceLocked(device *model.Device) error {
	if _, ok := m.devices[device.HardwareID]; ok {
		return fmt.Errorf("device %q: %w", device.HardwareID, core.ErrAlreadyExists)
	}
	if device.ParentHardwareID != "" {
		if _, ok := m.devices[device.ParentHardwareID]; !ok {
			return fmt.Errorf("parent device %q: %w", device.ParentHardwareID, core.ErrNotFound)
		}
	}
	m.devices[device.HardwareID] = cloneDevice(device)
	return nil
}

// RegisterDevice creates device together with its first assignment. Either
// both are stored or neither is.
func (m *Memory) RegisterDevice(_ context.Context, device *model.Device, assignment *model.DeviceAssignment) error {
	if device.HardwareID == "" {
		return fmt.Errorf("%w: hardware id", core.ErrMissingRequiredParameter)
	}
	assignment.HardwareID = device.HardwareID

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.createDeviceLocked(device); err != nil {
		return err
	}
	if err := m.createAssignmentLocked(assignment); err != nil {
		delete(m.devices, device.HardwareID)
		return err
	}
	device.AssignmentToken = assignment.Token
	return nil
}

func (m *Memory) GetAssignment(_ context.Context, token string) (*model.DeviceAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.assignments[token]
	if !ok {
		return nil, fmt.Errorf("assignment %q: %w", token, core.ErrNotFound)
	}
	return cloneAssignment(a), nil
}

// CreateAssignment stores assignment and makes it the device's current one.
// An empty token is generated. The specification token defaults to the
// device's.
func (m *Memory) CreateAssignment(_ context.Context, assignment *model.DeviceAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createAssignmentLocked(assignment)
}

func (m *Memory) createAssignmentLocked(assignment *model.DeviceAssignment) error {
	device, ok := m.devices[assignment.HardwareID]
	if !ok {
		return fmt.Errorf("device %q: %w", assignment.HardwareID, core.ErrNotFound)
	}
	if assignment.Token == "" {
		assignment.Token = uuid.NewString()
	}
	if _, ok := m.assignments[assignment.Token]; ok {
		return fmt.Errorf("assignment %q: %w", assignment.Token, core.ErrAlreadyExists)
	}
	if assignment.SpecificationToken == "" {
		assignment.SpecificationToken = device.SpecificationToken
	}
	if assignment.Status == "" {
		assignment.Status = model.AssignmentStatusActive
	}

	m.assignments[assignment.Token] = cloneAssignment(assignment)
	device.AssignmentToken = assignment.Token
	return nil
}

func (m *Memory) GetCommand(_ context.Context, token string) (*model.DeviceCommand, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.commands[token]
	if !ok {
		return nil, fmt.Errorf("command %q: %w", token, core.ErrNotFound)
	}
	return cloneCommand(c), nil
}

func (m *Memory) CreateCommand(_ context.Context, command *model.DeviceCommand) error {
	if command.Token == "" {
		return fmt.Errorf("%w: command token", core.ErrMissingRequiredParameter)
	}

	seen := make(map[string]struct{}, len(command.Parameters))
	for _, p := range command.Parameters {
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("%w: parameter %q declared twice", core.ErrAlreadyExists, p.Name)
		}
		seen[p.Name] = struct{}{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.commands[command.Token]; ok {
		return fmt.Errorf("command %q: %w", command.Token, core.ErrAlreadyExists)
	}
	m.commands[command.Token] = cloneCommand(command)
	return nil
}

// CreateInvocation records invocation, filling in its id and event date
// when they are empty.
func (m *Memory) CreateInvocation(_ context.Context, invocation *model.CommandInvocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if invocation.ID == "" {
		invocation.ID = uuid.NewString()
	}
	if invocation.EventDate.IsZero() {
		invocation.EventDate = m.now()
	}
	if _, ok := m.invocations[invocation.ID]; ok {
		return fmt.Errorf("invocation %q: %w", invocation.ID, core.ErrAlreadyExists)
	}
	m.invocations[invocation.ID] = cloneInvocation(invocation)
	return nil
}

func (m *Memory) GetInvocation(_ context.Context, id string) (*model.CommandInvocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inv, ok := m.invocations[id]
	if !ok {
		return nil, fmt.Errorf("invocation %q: %w", id, core.ErrNotFound)
	}
	return cloneInvocation(inv), nil
}

func (m *Memory) AddCommandResponse(_ context.Context, response *model.CommandResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.invocations[response.InvocationID]; !ok {
		return fmt.Errorf("invocation %q: %w", response.InvocationID, core.ErrNotFound)
	}
	r := *response
	if r.EventDate.IsZero() {
		r.EventDate = m.now()
	}
	m.responses[r.InvocationID] = append(m.responses[r.InvocationID], &r)
	return nil
}

func (m *Memory) ListCommandResponses(_ context.Context, invocationID string) ([]*model.CommandResponse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*model.CommandResponse, 0, len(m.responses[invocationID]))
	for _, r := range m.responses[invocationID] {
		c := *r
		out = append(out, &c)
	}
	return out, nil
}

// CreateBatchOperation records op in Unprocessed status together with one
// Unprocessed element per hardware id.
func (m *Memory) CreateBatchOperation(_ context.Context, op *model.BatchOperation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if op.Token == "" {
		op.Token = uuid.NewString()
	}
	if _, ok := m.batches[op.Token]; ok {
		return fmt.Errorf("batch operation %q: %w", op.Token, core.ErrAlreadyExists)
	}
	if op.CreatedDate.IsZero() {
		op.CreatedDate = m.now()
	}
	op.ProcessingStatus = model.BatchUnprocessed

	elements := make([]*model.BatchElement, 0, len(op.HardwareIDs))
	for i, hw := range op.HardwareIDs {
		elements = append(elements, &model.BatchElement{
			BatchToken:       op.Token,
			HardwareID:       hw,
			Index:            i,
			ProcessingStatus: model.ElementUnprocessed,
		})
	}

	m.batches[op.Token] = cloneBatch(op)
	m.elements[op.Token] = elements
	return nil
}

func (m *Memory) GetBatchOperation(_ context.Context, token string) (*model.BatchOperation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	op, ok := m.batches[token]
	if !ok {
		return nil, fmt.Errorf("batch operation %q: %w", token, core.ErrNotFound)
	}
	return cloneBatch(op), nil
}

func (m *Memory) UpdateBatchOperation(_ context.Context, token string, update *model.BatchOperationUpdate) (*model.BatchOperation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	op, ok := m.batches[token]
	if !ok {
		return nil, fmt.Errorf("batch operation %q: %w", token, core.ErrNotFound)
	}
	if update.ProcessingStatus != "" {
		op.ProcessingStatus = update.ProcessingStatus
	}
	if update.ProcessingStartedDate != nil {
		t := *update.ProcessingStartedDate
		op.ProcessingStartedDate = &t
	}
	if update.ProcessingEndedDate != nil {
		t := *update.ProcessingEndedDate
		op.ProcessingEndedDate = &t
	}
	if len(update.Metadata) > 0 {
		if op.Metadata == nil {
			op.Metadata = make(map[string]string, len(update.Metadata))
		}
		maps.Copy(op.Metadata, update.Metadata)
	}
	return cloneBatch(op), nil
}

// ListBatchElements returns the elements of a batch ordered by index.
func (m *Memory) ListBatchElements(_ context.Context, token string) ([]*model.BatchElement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.batches[token]; !ok {
		return nil, fmt.Errorf("batch operation %q: %w", token, core.ErrNotFound)
	}
	out := make([]*model.BatchElement, 0, len(m.elements[token]))
	for _, e := range m.elements[token] {
		out = append(out, cloneElement(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (m *Memory) UpdateBatchElement(_ context.Context, element *model.BatchElement) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	elements := m.elements[element.BatchToken]
	for i, e := range elements {
		if e.Index == element.Index {
			elements[i] = cloneElement(element)
			return nil
		}
	}
	return fmt.Errorf("batch element %s/%d: %w", element.BatchToken, element.Index, core.ErrNotFound)
}

func cloneDevice(d *model.Device) *model.Device {
	c := *d
	c.Metadata = maps.Clone(d.Metadata)
	return &c
}

func cloneAssignment(a *model.DeviceAssignment) *model.DeviceAssignment {
	c := *a
	c.Metadata = maps.Clone(a.Metadata)
	return &c
}

func cloneCommand(cmd *model.DeviceCommand) *model.DeviceCommand {
	c := *cmd
	c.Parameters = slices.Clone(cmd.Parameters)
	return &c
}

func cloneInvocation(inv *model.CommandInvocation) *model.CommandInvocation {
	c := *inv
	c.ParameterValues = maps.Clone(inv.ParameterValues)
	c.Metadata = maps.Clone(inv.Metadata)
	return &c
}

func cloneBatch(op *model.BatchOperation) *model.BatchOperation {
	c := *op
	c.Parameters = maps.Clone(op.Parameters)
	c.ParameterValues = maps.Clone(op.ParameterValues)
	c.HardwareIDs = slices.Clone(op.HardwareIDs)
	c.Metadata = maps.Clone(op.Metadata)
	if op.ProcessingStartedDate != nil {
		t := *op.ProcessingStartedDate
		c.ProcessingStartedDate = &t
	}
	if op.ProcessingEndedDate != nil {
		t := *op.ProcessingEndedDate
		c.ProcessingEndedDate = &t
	}
	return &c
}

func cloneElement(e *model.BatchElement) *model.BatchElement {
	c := *e
	c.Metadata = maps.Clone(e.Metadata)
	if e.ProcessedDate != nil {
		t := *e.ProcessedDate
		c.ProcessedDate = &t
	}
	return &c
}
