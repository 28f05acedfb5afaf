// Package domain contains the core business entities and rules for buildlens.
// It has no dependencies on adapters or infrastructure - pure Go types that
// represent artifacts under analysis, extracted evidence, validated findings,
// and usage accounting.
package domain
