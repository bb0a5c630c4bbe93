// Package plugins lists the kv storage plugins
// that ship with memevote.
package plugins

import (
	"github.com/pavlenkotm/memevote/storage/kv"
	"github.com/pavlenkotm/memevote/storage/kv/plugins/bbolt"
	"github.com/pavlenkotm/memevote/storage/kv/plugins/memory"
	"github.com/pavlenkotm/memevote/storage/kv/plugins/sqlkv"
)

var plugins []kv.Plugin

func init() {
	plugins = append(plugins, bbolt.Plugins()...)
	plugins = append(plugins, sqlkv.Plugins()...)
	plugins = append(plugins, memory.Plugins()...)
}

// Plugin returns the plugin whose name matches the given name.
// It returns nil if no such plugin is found.
func Plugin(name string) kv.Plugin {
	for _, plugin := range plugins {
		if plugin.Name() == name {
			return plugin
		}
	}

	return nil
}

// Plugins lists all the plugins that are available
func Plugins() []kv.Plugin {
	return plugins
}

// Names lists the names of all available plugins
func Names() []string {
	names := make([]string, 0, len(plugins))

	for _, plugin := range plugins {
		names = append(names, plugin.Name())
	}

	return names
}
