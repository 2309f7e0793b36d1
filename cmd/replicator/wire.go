package main

import "github.com/google/wire"

// Set is used by Wire. cmd/replicator does not run `go:generate wire`
// itself (no generated wire_gen.go accompanies it), but Start below
// sequences these same Provide* functions by hand in the same
// dependency order Wire would compute, matching the teacher's own
// mylogical/wire_gen.go shape.
var Set = wire.NewSet(
	ProvideTask,
	ProvideSourceURL,
	ProvideSinkURL,
	ProvideFilter,
	ProvideRouter,
	ProvideResumer,
	ProvideQueue,
	ProvideMySQLMeta,
	ProvidePostgresMeta,
	ProvideExtractors,
	ProvideSinkerShards,
	ProvidePipelineConfig,
	ProvideCheckpoint,
)
