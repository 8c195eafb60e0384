package mqtt

import (
	"sort"
	"strings"
	"sync"

	"github.com/eclipse/paho.golang/paho"
)

const sharePrefix = "$share/"

type subscription struct {
	qos     byte
	match   []string // filter levels with any $share/<group> prefix removed
	handler MessageHandler
}

// subscriptionTable is the set of active topic filters keyed by the filter
// exactly as it was sent to the broker.
type subscriptionTable struct {
	mu      sync.RWMutex
	entries map[string]subscription
}

func newSubscriptionTable() *subscriptionTable {
	return &subscriptionTable{entries: make(map[string]subscription)}
}

func (t *subscriptionTable) put(filter string, qos byte, h MessageHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[filter] = subscription{
		qos:     qos,
		match:   strings.Split(unshare(filter), "/"),
		handler: h,
	}
}

func (t *subscriptionTable) remove(filter string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, filter)
}

// options returns the SUBSCRIBE options for every filter, ordered by filter.
func (t *subscriptionTable) options() []paho.SubscribeOptions {
	t.mu.RLock()
	defer t.mu.RUnlock()
	opts := make([]paho.SubscribeOptions, 0, len(t.entries))
	for filter, s := range t.entries {
		opts = append(opts, paho.SubscribeOptions{Topic: filter, QoS: s.qos})
	}
	sort.Slice(opts, func(i, j int) bool { return opts[i].Topic < opts[j].Topic })
	return opts
}

// match returns the handlers whose filter accepts topic.
func (t *subscriptionTable) match(topic string) []MessageHandler {
	levels := strings.Split(topic, "/")

	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []MessageHandler
	for _, s := range t.entries {
		if levelsMatch(s.match, levels) {
			out = append(out, s.handler)
		}
	}
	return out
}

// levelsMatch applies the MQTT wildcard rules: "+" consumes exactly one
// level and "#" consumes the remainder, including none.
func levelsMatch(filter, topic []string) bool {
	for len(filter) > 0 {
		head := filter[0]
		if head == "#" {
			return true
		}
		if len(topic) == 0 || (head != "+" && head != topic[0]) {
			return false
		}
		filter, topic = filter[1:], topic[1:]
	}
	return len(topic) == 0
}

// unshare strips the $share/<group>/ prefix of a shared subscription.
func unshare(filter string) string {
	rest, ok := strings.CutPrefix(filter, sharePrefix)
	if !ok {
		return filter
	}
	if _, topic, ok := strings.Cut(rest, "/"); ok {
		return topic
	}
	return filter
}
