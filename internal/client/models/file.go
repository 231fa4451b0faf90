// Package models defines the client-side records mirrored from the sync
// server: accounts, remote files and pending trust decisions.
package models

import (
	"path"
	"strings"
	"time"
)

// DownloadState tracks whether a remote file's content is present locally.
type DownloadState string

const (
	DownloadStateNone        DownloadState = "none"
	DownloadStateDownloading DownloadState = "downloading"
	DownloadStateDownloaded  DownloadState = "downloaded"
)

// RootPath is the remote path of every account's sync root.
const RootPath = "/"

// RemoteFile is one file or folder as known to the server and mirrored in
// the local database. RemotePath uniquely identifies it within one account.
// Children of a folder exist locally only after that folder has been synced.
type RemoteFile struct {
	ID            int64
	AccountName   string
	RemotePath    string
	ParentPath    string
	Name          string
	IsFolder      bool
	Size          int64
	ModifiedAt    time.Time
	ETag          string
	DownloadState DownloadState
	LocalPath     string
	KeepInSync    bool
}

// Downloaded reports whether content is available at LocalPath.
func (f *RemoteFile) Downloaded() bool {
	return f.DownloadState == DownloadStateDownloaded && f.LocalPath != ""
}

// IsRoot reports whether the file is the account's sync root.
func (f *RemoteFile) IsRoot() bool {
	return f.RemotePath == RootPath
}

// ParentOf returns the remote path of the folder containing p.
// The parent of the root is the root itself.
func ParentOf(p string) string {
	p = strings.TrimSuffix(p, "/")
	if p == "" {
		return RootPath
	}
	parent := path.Dir(p)
	if parent == "." {
		return RootPath
	}
	return parent
}

// NameOf returns the last path segment of p, or "/" for the root.
func NameOf(p string) string {
	p = strings.TrimSuffix(p, "/")
	if p == "" {
		return RootPath
	}
	return path.Base(p)
}

// UnderFolder reports whether p is the folder itself or lies below it.
// Used by event subscribers to filter notifications by path prefix.
func UnderFolder(folder, p string) bool {
	if folder == RootPath {
		return true
	}
	folder = strings.TrimSuffix(folder, "/")
	return p == folder || strings.HasPrefix(p, folder+"/")
}
