// Package docref extracts the opaque document id embedded in a generated
// document URL and builds the derived preview/export/copy URLs the frontend
// needs. A malformed URL degrades to ErrNoDocID ("no preview available"),
// never a panic.
package docref

import (
	"errors"
	"strings"
)

var ErrNoDocID = errors.New("docref: no document id in url")

const docsBase = "https://docs.google.com/document/d/"

// DocID locates the fixed "/d/" path segment and returns the following path
// component.
func DocID(rawURL string) (string, error) {
	_, rest, found := strings.Cut(rawURL, "/d/")
	if !found {
		return "", ErrNoDocID
	}
	id, _, _ := strings.Cut(rest, "/")
	id, _, _ = strings.Cut(id, "?")
	if id == "" {
		return "", ErrNoDocID
	}
	return id, nil
}

func PreviewURL(docID string) string {
	return docsBase + docID + "/preview"
}

func ExportURL(docID, format string) string {
	return docsBase + docID + "/export?format=" + format
}

func CopyURL(docID string) string {
	return docsBase + docID + "/copy"
}
