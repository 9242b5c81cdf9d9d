// Package model defines the row types and value union shared by the engine,
// the WAL and the snapshot format.
package model
