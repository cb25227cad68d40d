// Package services defines shared utilities consumed by the import stages and
// the source platform client.
//
// Key responsibilities:
//   - Context helpers that stamp deck IDs, stage names, and pass identifiers
//     for logging.
//   - The failure taxonomy: sentinel markers, the Wrap helper, and Classify,
//     which reduces any error to one Kind for the orchestrator to dispatch on.
package services
