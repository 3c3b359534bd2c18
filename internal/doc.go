// Package internal holds identifier generation shared by the root package and
// its flows. Nothing here is part of the public API.
package internal
