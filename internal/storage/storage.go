package storage

import (
	"context"
	"io"
)

// ObjectStore is the file side of the remote data service. Uploads overwrite
// any existing object at the same name, so re-uploading for the same CV is
// idempotent.
type ObjectStore interface {
	Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (publicURL string, err error)
	// Remove deletes an object; a missing object is not an error.
	Remove(ctx context.Context, objectName string) error
}

// ObjectName returns the store key for a CV's source file, one object per
// aggregate: {user_id}/{cv_id}.{ext}.
func ObjectName(userID, cvID, ext string) string {
	return userID + "/" + cvID + "." + ext
}
