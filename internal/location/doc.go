// Package location provides the location tree that occupancy is tracked over.
//
// A Location is a node in a single rooted (or multi-rooted) tree: a house
// contains floors, floors contain rooms, rooms may contain sub-areas such as
// an alcove or a desk zone. Each node carries occupancy Settings that decide
// how it participates in the occupancy engine, and Sensors map devices onto
// the node they observe.
//
// The package is the topology store the occupancy engine trusts:
//
//	YAML file ──LoadFile──► File ──Seed──► SQLiteRepository
//	                                              │
//	                                     List / ListSensors
//	                                              ▼
//	                        BuildEngineConfigs / BuildBindings
//	                                              │
//	                                              ▼
//	                         occupancy.NewEngine / classify.New
//
// Validate enforces what the engine assumes: unique IDs, known parents and
// an acyclic tree.
//
// # Thread Safety
//
// SQLiteRepository is safe for concurrent use from multiple goroutines
// (SQLite WAL mode + connection pooling).
package location
