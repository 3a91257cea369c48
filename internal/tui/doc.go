// Package tui hosts the render loop in a terminal. A bubbletea program
// provides the display refresh (a tick message per frame), mouse input
// (mapped to pointer events) and window size changes (mapped to resize
// events); the scene is rasterized into terminal cells with lipgloss
// colors.
package tui
