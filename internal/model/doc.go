// Package model defines the data types shared across the search pipeline,
// its cache and its HTTP surface.
package model
