// Package s3 streams archives from Amazon S3.
//
// Missing keys and buckets as well as denied access are reported as
// source.ErrUnavailable so the next candidate source is tried. Source also
// implements source.Downloader: large archives are fetched with parallel
// ranged GETs through the s3 transfer manager.
package s3
