// Command bindery ingests raw book datasets into a document store and
// augments the resulting records with metadata from external providers.
package main
