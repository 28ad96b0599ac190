// Package record implements the on-disk format of the segmented record log.
//
// One record file holds exactly one segment. A file is self-describing: it
// carries a channel record for every channel referenced by a message inside
// it, so any single file can be decoded without consulting its neighbors.
//
// # Layout
//
// Little-endian throughout.
//
//	Header:  magic "SGLG" | version u16 | codec u16 | file_index u64 | begin_time u64 | reserved u32
//	Channel: kind=1 | name | message_type | schema_descriptor | crc32
//	Message: kind=2 | flags u8 | channel_name | timestamp u64 | payload | crc32
//	Footer:  kind=3 | message_count u64 | end_time u64 | raw_bytes u64 | crc32
//
// Strings are length-prefixed (u16 for names and types, u32 for descriptors
// and payloads). The footer is written only by a successful Finalize; a file
// without a footer is a segment that was still being written when the
// process stopped, and its message records remain individually decodable.
//
// [FileWriter] produces record files, [FileReader] consumes them.
package record
