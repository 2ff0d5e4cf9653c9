// Package mediatypes classifies library files by extension.
//
// This package exists as a dependency-free foundation that can be imported by other
// packages without creating import cycles. It contains primitive types, constants,
// and pure utility functions with no external dependencies beyond the standard library.
//
// # File Types
//
//	mediatypes.FileTypeFolder // Directories
//	mediatypes.FileTypeVideo  // Supported video formats (mp4, mkv, avi, etc.)
//	mediatypes.FileTypeAudio  // Supported audio formats (mp3, flac, m4a, etc.)
//	mediatypes.FileTypeOther  // Unrecognized or unsupported files
//
// # Classification
//
// Classify combines the extension lookup with episode detection, which the
// indexer uses to tell movies from TV episodes:
//
//	fileType, episode := mediatypes.Classify("Show.S01E02.mkv") // video, true
package mediatypes
