// Package language maps between language codes, word forms, and display
// names. Session creation accepts anything this package recognizes and
// stores the ISO 639-1 form; status output uses the display names.
package language
