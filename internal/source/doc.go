// Package source implements the configuration sources consulted by the
// resolver: the process environment, a local.properties file and a static
// in-memory map.
package source
