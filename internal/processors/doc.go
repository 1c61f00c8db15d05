// Package processors holds the built-in processor classes: number sources
// and arithmetic, element selection over multi-inports, a gradient image
// source, a layer renderer with reloadable resources, an image canvas and a
// data exporter.
//
// RegisterAll adds every class to a processor.Registry so serialized
// networks can be rebuilt from class identifiers.
package processors
