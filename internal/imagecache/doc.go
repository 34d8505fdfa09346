// Package imagecache stores card images under deterministic file names.
//
// Files are named {set}_{collector}{ext}, with _face2, _face3 ... suffixes
// for the extra faces of multi-face cards. An existing file is reused unless
// a refresh is forced; downloads go through a temp file and rename so a
// partial image never appears under its final name. Concurrent requests for
// the same file share one download.
package imagecache
