// Package forknative launches native executables as child processes with a
// JSON IPC channel attached.
//
// Launch validates the caller's arguments, builds the descriptor table for
// the child and hands the result to a Spawner. When no descriptor table is
// given the child inherits stdin, stdout and stderr (or gets pipes when
// Silent is set) and the IPC channel is placed at descriptor 3. A caller
// supplied table must contain the IPC marker.
//
// The child finds its channel through the NODE_CHANNEL_FD environment
// variable and exchanges newline delimited JSON documents over it; see
// package ipc for the child side.
package forknative
