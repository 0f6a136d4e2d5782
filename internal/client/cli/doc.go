// Package cli provides the offsync command-line client.
//
// It wires configuration, local storage, the remote API client, the sync
// engine and a cobra command tree. One-shot commands (put, list, sync, ...)
// open the local database, do their work and exit. The run command starts
// the connectivity monitor and the background sync loop and then reads
// commands interactively until the user exits.
//
// Local data commands work offline and without login; sync, resync and
// status talk to the server and need a session from login.
package cli
