// Package s3store implements store.FileStore on S3 compatible object
// storage. Object ETags are the version tokens; appends are conditional
// writes so a concurrent change is reported as a state conflict instead
// of being overwritten.
package s3store
