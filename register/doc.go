// Package register describes the register map of a Vents air-handling unit: every supported parameter, its address,
// how its raw value is typed and scaled, and whether Home Assistant may write to it.
//
// A Catalog is built once at startup and is immutable afterwards, so it may be shared freely between goroutines.
package register
