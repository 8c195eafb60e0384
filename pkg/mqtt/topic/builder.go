// Package topic builds MQTT topic names for the device command protocol.
package topic

import "strings"

const (
	// Wildcard is the single-level wildcard "+".
	Wildcard = "+"

	// MultiWildcard is the multi-level wildcard "#". It must be the last level.
	MultiWildcard = "#"

	sharePrefix = "$share"
)

// Builder constructs topic strings of the form {root}/{segment}/{id}.
// A shared Builder prefixes every topic with $share/{group}/ so that several
// replicas split the subscription load.
type Builder struct {
	root  string
	group string
}

// NewBuilder creates a Builder rooted at root (e.g. "devices/v1").
func NewBuilder(root string) *Builder {
	return &Builder{root: strings.TrimSuffix(root, "/")}
}

// Root returns the namespace this builder is rooted at.
func (b *Builder) Root() string {
	return b.root
}

// Shared returns a copy of b that builds shared-subscription filters for group.
func (b *Builder) Shared(group string) *Builder {
	return &Builder{root: b.root, group: group}
}

// Build returns the topic for segment addressed to id.
func (b *Builder) Build(segment, id string) string {
	return b.join(segment, id)
}

// BuildWildcard returns a filter matching segment for every id.
func (b *Builder) BuildWildcard(segment string) string {
	return b.join(segment, Wildcard)
}

// ID extracts the trailing id from a concrete topic built for segment.
// It returns false when topic does not belong to segment.
func (b *Builder) ID(segment, topic string) (string, bool) {
	prefix := b.root + "/" + segment + "/"
	if !strings.HasPrefix(topic, prefix) {
		return "", false
	}
	id := strings.TrimPrefix(topic, prefix)
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

func (b *Builder) join(segment, id string) string {
	t := b.root + "/" + segment + "/" + id
	if b.group != "" {
		return sharePrefix + "/" + b.group + "/" + t
	}
	return t
}
