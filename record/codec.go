package record

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
)

func encodeHeader(h Header) []byte {
	buf := make([]byte, headerSize)
	copy(buf[0:4], fileMagic[:])
	binary.LittleEndian.PutUint16(buf[4:6], h.Version)
	binary.LittleEndian.PutUint16(buf[6:8], uint16(h.Compression))
	binary.LittleEndian.PutUint64(buf[8:16], h.FileIndex)
	binary.LittleEndian.PutUint64(buf[16:24], h.BeginTime)
	// buf[24:28] reserved
	return buf
}

func decodeHeader(buf []byte) (Header, error) {
	if len(buf) < headerSize {
		return Header{}, fmt.Errorf("%w: header truncated (%d bytes)", ErrInvalidMagic, len(buf))
	}
	if [4]byte(buf[0:4]) != fileMagic {
		return Header{}, ErrInvalidMagic
	}
	h := Header{
		Version:     binary.LittleEndian.Uint16(buf[4:6]),
		Compression: Compression(binary.LittleEndian.Uint16(buf[6:8])),
		FileIndex:   binary.LittleEndian.Uint64(buf[8:16]),
		BeginTime:   binary.LittleEndian.Uint64(buf[16:24]),
	}
	if h.Version != FormatVersion {
		return Header{}, fmt.Errorf("%w: %d", ErrIncompatibleVersion, h.Version)
	}
	return h, nil
}

// encodeChannel builds one channel record. The checksum covers everything
// between the kind byte and the checksum itself.
func encodeChannel(ch Channel) []byte {
	n := 1 + 2 + len(ch.Name) + 2 + len(ch.MessageType) + 4 + len(ch.SchemaDescriptor) + 4
	buf := make([]byte, 0, n)
	buf = append(buf, kindChannel)
	buf = appendString16(buf, ch.Name)
	buf = appendString16(buf, ch.MessageType)
	buf = appendBytes32(buf, ch.SchemaDescriptor)
	crc := crc32.ChecksumIEEE(buf[1:])
	return binary.LittleEndian.AppendUint32(buf, crc)
}

// encodeMessage builds one message record around the already-stored payload
// form (compressed or raw). The checksum covers the payload as stored.
func encodeMessage(name string, timestamp uint64, stored []byte, flags byte) []byte {
	n := 1 + 1 + 2 + len(name) + 8 + 4 + len(stored) + 4
	buf := make([]byte, 0, n)
	buf = append(buf, kindMessage, flags)
	buf = appendString16(buf, name)
	buf = binary.LittleEndian.AppendUint64(buf, timestamp)
	buf = appendBytes32(buf, stored)
	crc := crc32.ChecksumIEEE(stored)
	return binary.LittleEndian.AppendUint32(buf, crc)
}

func encodeFooter(f Footer) []byte {
	buf := make([]byte, 0, 1+24+4)
	buf = append(buf, kindFooter)
	buf = binary.LittleEndian.AppendUint64(buf, f.MessageCount)
	buf = binary.LittleEndian.AppendUint64(buf, f.EndTime)
	buf = binary.LittleEndian.AppendUint64(buf, f.RawBytes)
	crc := crc32.ChecksumIEEE(buf[1:])
	return binary.LittleEndian.AppendUint32(buf, crc)
}

func appendString16(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(s)))
	return append(buf, s...)
}

func appendBytes32(buf []byte, b []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(b)))
	return append(buf, b...)
}

// decodeChannel reads the remainder of a channel record after its kind byte.
func decodeChannel(r io.Reader) (Channel, error) {
	crc := crc32.NewIEEE()
	tee := io.TeeReader(r, crc)

	name, err := readString16(tee)
	if err != nil {
		return Channel{}, err
	}
	msgType, err := readString16(tee)
	if err != nil {
		return Channel{}, err
	}
	desc, err := readBytes32(tee)
	if err != nil {
		return Channel{}, err
	}
	want, err := readUint32(r)
	if err != nil {
		return Channel{}, err
	}
	if crc.Sum32() != want {
		return Channel{}, fmt.Errorf("%w: channel %q", ErrChecksum, name)
	}
	return Channel{Name: name, MessageType: msgType, SchemaDescriptor: desc}, nil
}

// decodeMessage reads the remainder of a message record after its kind byte
// and returns the message with its payload decompressed.
func decodeMessage(r io.Reader, codec Compression) (Message, error) {
	var flags [1]byte
	if _, err := io.ReadFull(r, flags[:]); err != nil {
		return Message{}, err
	}
	name, err := readString16(r)
	if err != nil {
		return Message{}, err
	}
	ts, err := readUint64(r)
	if err != nil {
		return Message{}, err
	}
	stored, err := readBytes32(r)
	if err != nil {
		return Message{}, err
	}
	want, err := readUint32(r)
	if err != nil {
		return Message{}, err
	}
	if crc32.ChecksumIEEE(stored) != want {
		return Message{}, fmt.Errorf("%w: message on %q at %d", ErrChecksum, name, ts)
	}

	payload := stored
	if flags[0]&flagCompressed != 0 {
		payload, err = decompressPayload(codec, stored)
		if err != nil {
			return Message{}, err
		}
	}
	return Message{ChannelName: name, Timestamp: ts, Payload: payload}, nil
}

// decodeFooter reads the remainder of a footer record after its kind byte.
func decodeFooter(r io.Reader) (Footer, error) {
	var buf [24]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Footer{}, err
	}
	want, err := readUint32(r)
	if err != nil {
		return Footer{}, err
	}
	if crc32.ChecksumIEEE(buf[:]) != want {
		return Footer{}, fmt.Errorf("%w: footer", ErrChecksum)
	}
	return Footer{
		MessageCount: binary.LittleEndian.Uint64(buf[0:8]),
		EndTime:      binary.LittleEndian.Uint64(buf[8:16]),
		RawBytes:     binary.LittleEndian.Uint64(buf[16:24]),
	}, nil
}

func readString16(r io.Reader) (string, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", err
	}
	n := binary.LittleEndian.Uint16(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readBytes32(r io.Reader) ([]byte, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func readUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}
