// Package files persists RemoteFile metadata mirrored from the sync server.
// It is the storage behind the StorageManager facade; the syncer rewrites
// folder contents here and the transfer layer records download state.
package files
