package clk

import (
	"fmt"
	"slices"
)

// CommandCollection is a group whose subcommands come from its own registry and then from a list
// of source groups, in order. It lets several independently defined groups be exposed as one.
type CommandCollection struct {
	*Group
	sources []*Group
}

var _ Commander = (*CommandCollection)(nil)

// NewCommandCollection creates a collection over sources. cfg configures the collection itself
// the same way it configures a [Group].
func NewCommandCollection(cmd Command, cfg GroupConfig, sources ...*Group) (*CommandCollection, error) {
	own := cfg.Registry
	if own == nil {
		own = NewMapRegistry()
	}
	cc := &CommandCollection{}
	cfg.Registry = &collectionRegistry{own: own, cc: cc}
	g, err := NewGroup(cmd, cfg)
	if err != nil {
		return nil, err
	}
	cc.Group = g
	for _, src := range sources {
		if err := cc.AddSource(src); err != nil {
			return nil, err
		}
	}
	return cc, nil
}

// AddSource appends a group whose commands become available through the collection.
func (cc *CommandCollection) AddSource(src *Group) error {
	if cc.chain {
		for _, name := range src.ListCommands(nil) {
			cmd, err := src.GetCommand(nil, name)
			if err != nil {
				return err
			}
			if cmd != nil {
				if err := checkNestedChain(cc.Group, name, cmd); err != nil {
					return err
				}
			}
		}
	}
	cc.sources = append(cc.sources, src)
	return nil
}

// Sources returns the source groups in lookup order.
func (cc *CommandCollection) Sources() []*Group { return cc.sources }

type collectionRegistry struct {
	own Registry
	cc  *CommandCollection
}

func (r *collectionRegistry) Add(name string, cmd Commander) { r.own.Add(name, cmd) }

func (r *collectionRegistry) Lookup(ctx *Context, name string) (Commander, error) {
	if cmd, err := r.own.Lookup(ctx, name); cmd != nil || err != nil {
		return cmd, err
	}
	for _, src := range r.cc.sources {
		cmd, err := src.GetCommand(ctx, name)
		if err != nil {
			return nil, err
		}
		if cmd == nil {
			continue
		}
		if r.cc.chain {
			if err := checkNestedChain(r.cc.Group, name, cmd); err != nil {
				return nil, fmt.Errorf("command collection: %w", err)
			}
		}
		return cmd, nil
	}
	return nil, nil
}

func (r *collectionRegistry) List(ctx *Context) []string {
	seen := make(map[string]struct{})
	for _, name := range r.own.List(ctx) {
		seen[name] = struct{}{}
	}
	for _, src := range r.cc.sources {
		for _, name := range src.ListCommands(ctx) {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
