// Package datasets registers the destination schemas with the core registry.
// Import it for its side effects.
package datasets
