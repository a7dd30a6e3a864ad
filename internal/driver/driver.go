// Package driver maps decoded ZCL traffic of a device family to properties
// and named commands to outbound instruction sequences.
package driver

import (
	"errors"
	"fmt"
	"sort"

	"zigbee-lumi/internal/command"
	"zigbee-lumi/internal/lumi"
	"zigbee-lumi/internal/zcl"
)

// ErrUnsupported is returned for command names a driver does not know.
var ErrUnsupported = errors.New("driver: unsupported command")

// ErrInvalidArgument matches argument validation failures, including
// *lumi.ValidationError.
var ErrInvalidArgument = lumi.ErrValidation

// Driver is one device family.
type Driver interface {
	Name() string
	Profile() *lumi.Profile
	// HandleAttribute applies one attribute record. handled is false when
	// the driver has no entry for it.
	HandleAttribute(u *Update, cluster uint16, a zcl.Attribute) (handled bool, err error)
	// Commands lists the accepted command names.
	Commands() []string
	// Build returns the instructions for a named command. Nothing is
	// returned alongside an error.
	Build(name string, args Args) ([]command.Instruction, error)
}

// Update collects the effects of one inbound frame.
type Update struct {
	Props   map[string]interface{}
	Regions []lumi.RegionEvent
}

func newUpdate() *Update {
	return &Update{Props: make(map[string]interface{})}
}

// Set records a property value.
func (u *Update) Set(name string, v interface{}) { u.Props[name] = v }

type attrHandler func(u *Update, a zcl.Attribute) error

type builder func(args Args) ([]command.Instruction, error)

// table is the dispatch core shared by the drivers: cluster -> attribute ->
// handler for inbound records and name -> builder for commands.
type table struct {
	name     string
	profile  *lumi.Profile
	endpoint uint8
	registry *zcl.Registry

	attrs    map[uint16]map[uint16]attrHandler
	commands map[string]builder
}

func newTable(name string, p *lumi.Profile, ep uint8, reg *zcl.Registry) *table {
	return &table{
		name:     name,
		profile:  p,
		endpoint: ep,
		registry: reg,
		attrs:    make(map[uint16]map[uint16]attrHandler),
		commands: make(map[string]builder),
	}
}

func (t *table) onAttr(cluster, attr uint16, h attrHandler) {
	if t.attrs[cluster] == nil {
		t.attrs[cluster] = make(map[uint16]attrHandler)
	}
	t.attrs[cluster][attr] = h
}

func (t *table) onCommand(name string, b builder) { t.commands[name] = b }

func (t *table) Name() string { return t.name }

func (t *table) Profile() *lumi.Profile { return t.profile }

func (t *table) HandleAttribute(u *Update, cluster uint16, a zcl.Attribute) (bool, error) {
	h, ok := t.attrs[cluster][a.ID]
	if !ok {
		return false, nil
	}
	return true, h(u, a)
}

func (t *table) Commands() []string {
	names := make([]string, 0, len(t.commands))
	for n := range t.commands {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (t *table) Build(name string, args Args) ([]command.Instruction, error) {
	b, ok := t.commands[name]
	if !ok {
		return nil, fmt.Errorf("%s: %q: %w", t.name, name, ErrUnsupported)
	}
	seq, err := b(args)
	if err != nil {
		return nil, err
	}
	return seq, nil
}

// write builds a WriteAttr with the data type and manufacturer code taken
// from the cluster registry.
func (t *table) write(cluster, attr uint16, v interface{}) (command.Instruction, error) {
	def, ok := t.registry.Attribute(cluster, attr)
	if !ok {
		return command.Instruction{}, fmt.Errorf("%s: attribute %s not registered", t.name, t.registry.AttributeName(cluster, attr))
	}
	wire, err := zcl.EncodeValue(def.Type, v)
	if err != nil {
		return command.Instruction{}, fmt.Errorf("%s: encode %s: %w", t.name, def.Name, err)
	}
	in := command.WriteAttr(t.endpoint, cluster, attr, def.Type, wire)
	if c := t.registry.Get(cluster); c != nil && c.ManufacturerCode != 0 {
		in = in.Mfg(c.ManufacturerCode)
	}
	return in, nil
}

// read builds a ReadAttr, with the manufacturer code when the cluster has one.
func (t *table) read(cluster, attr uint16) command.Instruction {
	in := command.ReadAttr(t.endpoint, cluster, attr)
	if c := t.registry.Get(cluster); c != nil && c.ManufacturerCode != 0 {
		in = in.Mfg(c.ManufacturerCode)
	}
	return in
}

// New returns the driver registered under name.
func New(name string, p *lumi.Profile, ep uint8, reg *zcl.Registry) (Driver, error) {
	if ep == 0 {
		ep = 1
	}
	switch name {
	case "curtain":
		return NewCurtain(p, ep, reg), nil
	case "presence":
		return NewPresence(p, ep, reg), nil
	case "generic", "":
		return NewGeneric(p, ep, reg), nil
	}
	return nil, fmt.Errorf("driver: unknown driver %q", name)
}

// Names lists the registered driver names.
func Names() []string {
	return []string{"curtain", "generic", "presence"}
}
