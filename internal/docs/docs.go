// Package docs holds the articles printed by 'ok docs'.
package docs

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrUnknownTopic is returned by Get for a name no topic has.
var ErrUnknownTopic = errors.New("unknown topic")

// Topic is one article. Content is plain text without ANSI codes.
type Topic struct {
	Name    string
	Title   string
	Summary string
	Content string
}

// All returns the topics in listing order.
func All() []Topic {
	return topics
}

// Get finds a topic by name, ignoring case and surrounding space.
func Get(name string) (Topic, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	i := slices.IndexFunc(topics, func(t Topic) bool { return t.Name == key })
	if i < 0 {
		names := make([]string, len(topics))
		for j, t := range topics {
			names[j] = t.Name
		}
		return Topic{}, fmt.Errorf("%w %q: choose one of %s", ErrUnknownTopic, name, strings.Join(names, ", "))
	}
	return topics[i], nil
}
