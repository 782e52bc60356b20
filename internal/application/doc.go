// Package application provides application initialization and dependency wiring.
// It loads the properties file, builds the ordered sources and the resolver,
// resolves the manifest placeholders once, and creates the HTTP server that
// exposes them, keeping the main package focused on CLI parsing.
package application
