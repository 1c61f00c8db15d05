// Package serial converts networks to and from documents.
//
// A NetworkDoc is a tree of identifiers and values: processors with their
// class and property values, connections as port paths, and property links.
// Documents encode to YAML or JSON. Build reconstructs an equivalent
// network through a processor registry; Snapshot produces the document of a
// live network. Snapshot(Build(doc)) equals doc for every valid doc.
package serial
