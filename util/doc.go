// Package util holds small parsing and display helpers shared by config
// sections.
package util
