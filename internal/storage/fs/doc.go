// Package fs is the file storage backend behind the mutation pipeline. Paths
// are logical, slash-separated and rooted ("/notes/a.txt"); Local maps them
// under a root directory and refuses anything that would escape it.
package fs
