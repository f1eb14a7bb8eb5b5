package backend

import (
	"strings"
	"time"
)

type Signature struct {
	Name  string
	Email string
	When  time.Time
}

type Commit struct {
	Hash         string
	ParentHashes []string
	Author       Signature
	Committer    Signature
}

// Time is the timestamp used both to order the ancestor walk and to report
// when a commit happened.
func (c *Commit) Time() time.Time {
	if c.Committer.When.IsZero() {
		return c.Author.When
	}
	return c.Committer.When
}

// ShortHash returns the abbreviated hash used in log and explain output.
func (c *Commit) ShortHash() string {
	if len(c.Hash) > 7 {
		return c.Hash[:7]
	}
	return c.Hash
}

type EntryKind uint8

const (
	EntryFile EntryKind = iota
	EntryTree
	EntrySubmodule
)

func (k EntryKind) String() string {
	switch k {
	case EntryTree:
		return "tree"
	case EntrySubmodule:
		return "commit"
	default:
		return "blob"
	}
}

type TreeEntry struct {
	Path string
	Hash string // content identity; empty or all zeros when unknown
	Kind EntryKind
}

// IsZero reports whether the entry carries no usable content identity.
func (e TreeEntry) IsZero() bool {
	return strings.Trim(e.Hash, "0") == ""
}
