package bundler

import "context"

// Module is one node of a compiled module graph
type Module interface {
	// Identifier names the module. External modules use the form
	// `external "<import path>"`.
	Identifier() string
}

// Chunk is one output of a compilation and the modules it contains
type Chunk interface {
	Name() string
	Modules() []Module
}

// Stats is the result of a compilation
type Stats interface {
	Chunks() []Chunk
	Warnings() []string
}

// Compiler compiles a set of named entry points into a module graph
type Compiler interface {
	Compile(ctx context.Context, cfg *BuildConfig, entries map[string]string) (Stats, error)
}

// ModuleID is a Module backed by a plain identifier string
type ModuleID string

// Identifier implements Module
func (m ModuleID) Identifier() string { return string(m) }

// ExternalModuleID returns the identifier of an external module import
func ExternalModuleID(path string) ModuleID {
	return ModuleID(externalPrefix + `"` + path + `"`)
}

// StaticChunk is an in-memory Chunk
type StaticChunk struct {
	ChunkName    string
	ChunkModules []Module
}

// Name implements Chunk
func (c *StaticChunk) Name() string { return c.ChunkName }

// Modules implements Chunk
func (c *StaticChunk) Modules() []Module { return c.ChunkModules }

// StaticStats is an in-memory Stats
type StaticStats struct {
	ChunkList   []Chunk
	WarningList []string
}

// Chunks implements Stats
func (s *StaticStats) Chunks() []Chunk { return s.ChunkList }

// Warnings implements Stats
func (s *StaticStats) Warnings() []string { return s.WarningList }
