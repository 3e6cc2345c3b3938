// Package partition maps chat scopes onto record store partition keys.
package partition

import (
	"fmt"
	"net/url"
	"strings"
)

const separator = ":"

// Key identifies a record store partition.
type Key string

func (k Key) String() string {
	return string(k)
}

// Derive returns the partition holding a channel's proposals and plans.
// Each component is query-escaped so the separator can never appear inside one,
// which keeps distinct (workspace, channel) pairs on distinct keys.
func Derive(workspaceID, channelID string) Key {
	return Key(url.QueryEscape(workspaceID) + separator + url.QueryEscape(channelID))
}

// Workspace returns the partition holding a workspace's channel records.
func Workspace(workspaceID string) Key {
	return Key(url.QueryEscape(workspaceID))
}

// Parse inverts Derive.
func Parse(key Key) (workspaceID, channelID string, err error) {
	parts := strings.Split(string(key), separator)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("parse partition key %q: expected workspace and channel", string(key))
	}
	workspaceID, err = url.QueryUnescape(parts[0])
	if err != nil {
		return "", "", fmt.Errorf("parse partition key workspace: %w", err)
	}
	channelID, err = url.QueryUnescape(parts[1])
	if err != nil {
		return "", "", fmt.Errorf("parse partition key channel: %w", err)
	}
	if workspaceID == "" || channelID == "" {
		return "", "", fmt.Errorf("parse partition key %q: empty component", string(key))
	}
	return workspaceID, channelID, nil
}
