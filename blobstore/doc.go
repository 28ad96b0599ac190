// Package blobstore abstracts the storage targets finalized record files
// can be archived to.
//
// Record files are immutable once finalized, so the interface is
// write-once: Put uploads a complete file, Open reads one back, List and
// Delete manage the archive. [LocalStore] targets a directory on disk,
// [MemoryStore] backs tests. S3 and MinIO targets live in the s3 and minio
// subpackages.
package blobstore
