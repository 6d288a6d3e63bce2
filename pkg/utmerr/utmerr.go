// Package utmerr defines the closed set of error kinds surfaced by the UTM
// core's external interface (§7). Errors are sentinel values compared with
// errors.Is, following the same flat-sentinel shape as the reference
// geofence engine's *GeofenceError rather than a class hierarchy — spec.md
// §7 describes a closed enum, not an extensible error taxonomy.
package utmerr

import "errors"

var (
	// ErrOutOfBounds: pickup or delivery lies outside OPERATIONAL_BOUNDS,
	// or on a NO_FLY cell. Reported at intake; no state change.
	ErrOutOfBounds = errors.New("out of bounds")

	// ErrNoVehicle: no IDLE vehicle at request time. Client may retry.
	ErrNoVehicle = errors.New("no vehicle available")

	// ErrUnroutable: planner exhausted or proved no path. Fatal for the request.
	ErrUnroutable = errors.New("unroutable")

	// ErrResolutionFailed: conflicts remain after all resolver strategies.
	ErrResolutionFailed = errors.New("resolution failed")

	// ErrTimeout: request exceeded its deadline.
	ErrTimeout = errors.New("timeout")

	// ErrIllegalTransition: mark_mission_phase requested an illegal phase move.
	ErrIllegalTransition = errors.New("illegal mission phase transition")

	// ErrUnknownVehicle: vehicle id not recognized by the store.
	ErrUnknownVehicle = errors.New("unknown vehicle")

	// ErrUnknownMission: mission id not recognized by the store.
	ErrUnknownMission = errors.New("unknown mission")
)
