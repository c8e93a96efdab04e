package loader

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseYO parses an assembler object listing. Each line has the form
//
//	0x014: 30f20a00000000000000 | irmovq $10,%rdx
//
// Text after '|' is ignored, as are lines without an address. Gaps
// between records are zero-filled. Records ending past MaxImageSize are
// rejected with ErrImageTooLarge.
func ParseYO(r io.Reader) (*Image, error) {
	return ParseYOLimit(r, MaxImageSize)
}

// ParseYOLimit is ParseYO with the image bounded to limit bytes.
func ParseYOLimit(r io.Reader, limit uint64) (*Image, error) {
	img := &Image{Source: "<listing>"}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++

		code, _, _ := strings.Cut(scanner.Text(), "|")
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}

		addrText, bytesText, ok := strings.Cut(code, ":")
		if !ok {
			return nil, fmt.Errorf("line %d: missing address", lineNo)
		}

		addr, err := strconv.ParseUint(strings.TrimSpace(addrText), 0, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad address %q: %w", lineNo, addrText, err)
		}

		data, err := hex.DecodeString(strings.TrimSpace(bytesText))
		if err != nil {
			return nil, fmt.Errorf("line %d: bad bytes: %w", lineNo, err)
		}

		if err := img.place(addr, data, limit); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read listing: %w", err)
	}

	return img, nil
}

func (img *Image) place(addr uint64, data []byte, limit uint64) error {
	if len(data) == 0 {
		return nil
	}
	end := addr + uint64(len(data))
	if end < addr || end > limit {
		return fmt.Errorf("%w (record at 0x%x, limit %d bytes)", ErrImageTooLarge, addr, limit)
	}
	if end > img.Size() {
		img.Data = append(img.Data, make([]byte, end-img.Size())...)
	}
	copy(img.Data[addr:], data)
	return nil
}
