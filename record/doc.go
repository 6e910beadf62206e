// Package record defines the units persisted by a registrator and the codecs
// that store them on disk.
//
// A [Record] is a payload plus an optional label. Once saved, a record is
// identified only by its [Entry]: the path of the file the codec wrote
// (relative to the split folder) and the label.
//
// Two codecs are provided:
//
//   - [Blob]: serializes any value through a codec.Codec into a ".bin" file
//   - [ArrayCodec]: stores an [Array] as a NumPy ".npy" file, bit exact
//
// Codecs never overwrite an existing file; uniqueness of names is the layout
// namer's job.
package record
