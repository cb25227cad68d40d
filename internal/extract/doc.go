// Package extract turns a raw deck page into canonical deck content.
//
// The source platform embeds each deck as a JSON payload inside an inline
// script. Extraction matches that script with a fixed pattern, decodes and
// validates the payload, and materializes terms in the platform's original
// order rather than the order of its id-keyed term map.
package extract
