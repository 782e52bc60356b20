// Package manifest builds the set of placeholder values handed to the
// manifest generation step and encodes it for downstream tools.
package manifest
